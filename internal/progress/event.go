// Package progress defines the lifecycle events emitted by scrape runs and a
// non-blocking hub that fans them out to pluggable sinks.
package progress

import (
	"errors"
	"fmt"
	"time"
)

// Stage denotes the milestone represented by an Event.
type Stage string

// Supported run stages.
const (
	StageRunStart    Stage = "RUN_START"
	StageRunDone     Stage = "RUN_DONE"
	StageRunError    Stage = "RUN_ERROR"
	StageProductDone Stage = "PRODUCT_DONE"
	StageProductSkip Stage = "PRODUCT_SKIP"
)

// Event captures a single scrape milestone.
type Event struct {
	// RunID identifies the scrape run the event belongs to.
	RunID string
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which milestone occurred.
	Stage Stage
	// ProductID scopes product events to one catalog item.
	ProductID string
	// Channel names the fetch channel in use for the run.
	Channel string
	// Countries and Plans carry extraction counts for product completions.
	Countries int
	Plans     int
	// Products carries the record total for run completions.
	Products int
	// Dur captures fetch or run latency.
	Dur time.Duration
	// Note lets emitters attach low-volume context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == "" {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageRunError:
	case StageProductDone, StageProductSkip:
		if e.ProductID == "" {
			return fmt.Errorf("%s requires a product id", e.Stage)
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}
