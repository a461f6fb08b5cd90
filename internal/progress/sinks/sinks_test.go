package sinks

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/esimwatch/esim-crawler/internal/metrics"
	"github.com/esimwatch/esim-crawler/internal/progress"
)

func TestMain(m *testing.M) {
	metrics.Init()
	os.Exit(m.Run())
}

func eventBatch() []progress.Event {
	now := time.Now().UTC()
	return []progress.Event{
		{RunID: "run-1", TS: now, Stage: progress.StageRunStart, Channel: "test"},
		{RunID: "run-1", TS: now, Stage: progress.StageProductDone, ProductID: "p1", Channel: "test", Countries: 2, Plans: 3, Dur: time.Second},
		{RunID: "run-1", TS: now, Stage: progress.StageProductSkip, ProductID: "p2", Channel: "test", Note: "boom"},
		{RunID: "run-1", TS: now, Stage: progress.StageRunDone, Channel: "test", Products: 1, Dur: time.Minute},
	}
}

func TestLogSinkConsume(t *testing.T) {
	t.Parallel()

	sink := NewLogSink(zap.NewNop())
	require.NoError(t, sink.Consume(context.Background(), eventBatch()))
	require.NoError(t, sink.Close(context.Background()))
}

func TestPrometheusSinkConsume(t *testing.T) {
	t.Parallel()

	sink := NewPrometheusSink()
	require.NoError(t, sink.Consume(context.Background(), eventBatch()))
	require.NoError(t, sink.Close(context.Background()))
}
