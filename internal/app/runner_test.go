package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/esimwatch/esim-crawler/internal/artifact"
	"github.com/esimwatch/esim-crawler/internal/history"
	"github.com/esimwatch/esim-crawler/internal/publisher"
	"github.com/esimwatch/esim-crawler/internal/scrape"
)

type fixedRunner struct {
	result scrape.ScrapeResult
	err    error
}

func (r *fixedRunner) Run(context.Context) (scrape.ScrapeResult, error) {
	return r.result, r.err
}

func successResult() scrape.ScrapeResult {
	started := time.Unix(1700000000, 0).UTC()
	return scrape.ScrapeResult{
		RunID:      "run-1",
		StartedAt:  started,
		FinishedAt: started.Add(time.Minute),
		Channel:    "test",
		Records:    []scrape.ProductRecord{{Name: "Japan", SourceID: "p1"}},
	}
}

func newRunnerUnderTest(inner cacheRunner) (*recordingRunner, *history.MemoryStore, *publisher.Memory, *artifact.MemoryStore) {
	store := history.NewMemoryStore()
	pub := publisher.NewMemory()
	blobs := artifact.NewMemoryStore()
	return &recordingRunner{
		inner:        inner,
		blobs:        blobs,
		artifactPath: "bitrefill_esims.json",
		store:        store,
		pub:          pub,
		topic:        "esim-runs",
		logger:       zap.NewNop(),
	}, store, pub, blobs
}

func TestRecordingRunnerPersistsTrail(t *testing.T) {
	t.Parallel()

	runner, store, pub, blobs := newRunnerUnderTest(&fixedRunner{result: successResult()})

	result, err := runner.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, "run-1", result.RunID)

	snapshot, ok := blobs.Get("bitrefill_esims.json")
	require.True(t, ok)
	require.Contains(t, string(snapshot), `"run_id": "run-1"`)

	runs := store.Runs()
	require.Len(t, runs, 1)
	require.Equal(t, "ok", runs[0].Outcome)
	require.Equal(t, 1, runs[0].Products)
	require.Equal(t, "memory://bitrefill_esims.json", runs[0].ArtifactURI)

	messages := pub.Messages()
	require.Len(t, messages, 1)
	require.Equal(t, "esim-runs", messages[0].Topic)
}

func TestRecordingRunnerFailureSkipsArtifactAndNotification(t *testing.T) {
	t.Parallel()

	runner, store, pub, blobs := newRunnerUnderTest(&fixedRunner{
		result: scrape.ScrapeResult{RunID: "run-2", Channel: "test"},
		err:    errors.New("blocked"),
	})

	_, err := runner.Run(context.Background())
	require.Error(t, err)

	_, ok := blobs.Get("bitrefill_esims.json")
	require.False(t, ok)

	runs := store.Runs()
	require.Len(t, runs, 1)
	require.Equal(t, "error", runs[0].Outcome)
	require.Empty(t, runs[0].ArtifactURI)

	require.Empty(t, pub.Messages())
}
