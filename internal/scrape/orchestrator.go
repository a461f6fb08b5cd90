package scrape

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/esimwatch/esim-crawler/internal/progress"
)

// OrchestratorConfig controls run behavior.
type OrchestratorConfig struct {
	// Delay is the pacing interval between consecutive product fetches. It is
	// a politeness knob, not a correctness requirement.
	Delay time.Duration
	// FetchAttempts bounds retries of a single product fetch (default 2).
	FetchAttempts int
}

// Orchestrator drives one scrape: enumeration, per-product fetch, extraction,
// and result accumulation. Product fetches run sequentially with pacing in
// between, and one failing product never aborts the remaining queue.
type Orchestrator struct {
	enum      Enumerator
	fetcher   Fetcher
	extractor Extractor
	clock     Clock
	ids       IDGenerator
	hub       *progress.Hub
	logger    *zap.Logger
	limiter   *rate.Limiter
	cfg       OrchestratorConfig
}

// NewOrchestrator wires the pipeline components.
func NewOrchestrator(
	enum Enumerator,
	fetcher Fetcher,
	extractor Extractor,
	clock Clock,
	ids IDGenerator,
	hub *progress.Hub,
	logger *zap.Logger,
	cfg OrchestratorConfig,
) *Orchestrator {
	if cfg.FetchAttempts <= 0 {
		cfg.FetchAttempts = 2
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.Delay > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.Delay), 1)
	}
	return &Orchestrator{
		enum:      enum,
		fetcher:   fetcher,
		extractor: extractor,
		clock:     clock,
		ids:       ids,
		hub:       hub,
		logger:    logger,
		limiter:   limiter,
		cfg:       cfg,
	}
}

// Run executes one complete scrape. Enumeration failure aborts early with an
// empty result; per-product fetch failures drop only that product's record.
// Cancellation of ctx ends the run, returning whatever has accumulated.
func (o *Orchestrator) Run(ctx context.Context) (ScrapeResult, error) {
	runID, err := o.ids.NewID()
	if err != nil {
		return ScrapeResult{}, fmt.Errorf("generate run id: %w", err)
	}

	result := ScrapeResult{
		RunID:     runID,
		StartedAt: o.clock.Now(),
		Channel:   o.fetcher.Channel(),
	}
	o.emit(progress.Event{RunID: runID, Stage: progress.StageRunStart})

	refs, err := o.enum.Enumerate(ctx)
	if err != nil {
		result.FinishedAt = o.clock.Now()
		o.emit(progress.Event{
			RunID: runID,
			Stage: progress.StageRunError,
			Dur:   result.FinishedAt.Sub(result.StartedAt),
			Note:  err.Error(),
		})
		return result, fmt.Errorf("enumerate products: %w", err)
	}

	o.logger.Info("scrape run started",
		zap.String("run_id", runID),
		zap.String("channel", result.Channel),
		zap.Int("products", len(refs)),
	)

	for _, ref := range refs {
		if ctx.Err() != nil {
			o.logger.Warn("scrape run interrupted",
				zap.String("run_id", runID),
				zap.Int("accumulated", len(result.Records)),
			)
			break
		}
		if err := o.limiter.Wait(ctx); err != nil {
			break
		}
		o.processProduct(ctx, runID, ref, &result)
	}

	result.FinishedAt = o.clock.Now()
	o.emit(progress.Event{
		RunID:    runID,
		Stage:    progress.StageRunDone,
		Products: len(result.Records),
		Dur:      result.FinishedAt.Sub(result.StartedAt),
	})
	return result, nil
}

func (o *Orchestrator) processProduct(ctx context.Context, runID string, ref ProductReference, result *ScrapeResult) {
	start := o.clock.Now()
	raw, err := o.fetchProduct(ctx, ref)
	if err != nil {
		o.logger.Warn("product fetch failed",
			zap.String("run_id", runID),
			zap.String("product", ref.ID),
			zap.Error(err),
		)
		o.emit(progress.Event{
			RunID:     runID,
			Stage:     progress.StageProductSkip,
			ProductID: ref.ID,
			Dur:       o.clock.Now().Sub(start),
			Note:      err.Error(),
		})
		return
	}

	countries, plans := o.extractor.Extract(raw)
	name := o.extractor.Name(raw)
	if name == "" {
		name = ref.DisplayName
	}

	result.Records = append(result.Records, ProductRecord{
		Name:      name,
		SourceID:  ref.ID,
		URL:       ref.SourceURL,
		Countries: countries,
		Plans:     plans,
	})
	o.emit(progress.Event{
		RunID:     runID,
		Stage:     progress.StageProductDone,
		ProductID: ref.ID,
		Countries: len(countries),
		Plans:     len(plans),
		Dur:       o.clock.Now().Sub(start),
	})
}

// fetchProduct retries a bounded number of times; the retry budget is small
// because a product skipped this run is retried on the next full scrape.
func (o *Orchestrator) fetchProduct(ctx context.Context, ref ProductReference) (Raw, error) {
	var lastErr error
	for attempt := 1; attempt <= o.cfg.FetchAttempts; attempt++ {
		raw, err := o.fetcher.FetchProduct(ctx, ref)
		if err == nil {
			if raw.IsZero() {
				return Raw{}, fmt.Errorf("product %s: empty content", ref.ID)
			}
			return raw, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return Raw{}, lastErr
}

func (o *Orchestrator) emit(evt progress.Event) {
	if o.hub == nil {
		return
	}
	evt.TS = o.clock.Now()
	evt.Channel = o.fetcher.Channel()
	o.hub.Emit(evt)
}
