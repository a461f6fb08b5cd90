// Package sinks provides progress.Sink implementations.
package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/esimwatch/esim-crawler/internal/progress"
)

// LogSink writes progress events to a structured logger.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink builds a LogSink.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs one line per event.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("run_id", evt.RunID),
			zap.String("stage", string(evt.Stage)),
			zap.String("channel", evt.Channel),
		}
		switch evt.Stage {
		case progress.StageProductDone:
			fields = append(fields,
				zap.String("product", evt.ProductID),
				zap.Int("countries", evt.Countries),
				zap.Int("plans", evt.Plans),
				zap.Duration("dur", evt.Dur),
			)
			s.logger.Info("product scraped", fields...)
		case progress.StageProductSkip:
			fields = append(fields,
				zap.String("product", evt.ProductID),
				zap.String("reason", evt.Note),
			)
			s.logger.Warn("product skipped", fields...)
		case progress.StageRunError:
			fields = append(fields, zap.String("error", evt.Note))
			s.logger.Error("scrape run failed", fields...)
		case progress.StageRunDone:
			fields = append(fields,
				zap.Int("products", evt.Products),
				zap.Duration("dur", evt.Dur),
			)
			s.logger.Info("scrape run finished", fields...)
		default:
			s.logger.Info("scrape run started", fields...)
		}
	}
	return nil
}

// Close is a no-op; the logger outlives the sink.
func (s *LogSink) Close(context.Context) error {
	return nil
}
