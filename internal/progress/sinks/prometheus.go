package sinks

import (
	"context"

	"github.com/esimwatch/esim-crawler/internal/metrics"
	"github.com/esimwatch/esim-crawler/internal/progress"
)

// PrometheusSink exports progress events to the service's Prometheus
// collectors. metrics.Init must have been called before events arrive.
type PrometheusSink struct{}

// NewPrometheusSink builds a PrometheusSink.
func NewPrometheusSink() *PrometheusSink {
	return &PrometheusSink{}
}

// Consume translates events into collector updates.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageProductDone:
			metrics.ObserveProduct(evt.Channel, "ok", evt.Dur)
		case progress.StageProductSkip:
			metrics.ObserveProduct(evt.Channel, "skipped", evt.Dur)
		case progress.StageRunDone:
			metrics.ObserveRun(evt.Channel, "ok", evt.Dur)
		case progress.StageRunError:
			metrics.ObserveRun(evt.Channel, "error", evt.Dur)
		}
	}
	return nil
}

// Close is a no-op.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
