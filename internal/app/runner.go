package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/esimwatch/esim-crawler/internal/artifact"
	"github.com/esimwatch/esim-crawler/internal/history"
	"github.com/esimwatch/esim-crawler/internal/publisher"
	"github.com/esimwatch/esim-crawler/internal/scrape"
)

// recordingRunner wraps the orchestrator so every completed run leaves a
// trail: a snapshot artifact, a history row, and a notification. Failures in
// the trail are logged and never fail the run itself.
type recordingRunner struct {
	inner        cacheRunner
	blobs        artifact.BlobStore
	artifactPath string
	store        history.Store
	pub          publisher.Publisher
	topic        string
	logger       *zap.Logger
}

type cacheRunner interface {
	Run(ctx context.Context) (scrape.ScrapeResult, error)
}

func (r *recordingRunner) Run(ctx context.Context) (scrape.ScrapeResult, error) {
	result, err := r.inner.Run(ctx)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}

	var uri string
	if err == nil && result.Len() > 0 {
		uri = r.writeArtifact(ctx, result)
	}

	if recErr := r.store.RecordRun(ctx, history.Run{
		RunID:       result.RunID,
		Channel:     result.Channel,
		Outcome:     outcome,
		StartedAt:   result.StartedAt,
		FinishedAt:  result.FinishedAt,
		Products:    result.Len(),
		ArtifactURI: uri,
	}); recErr != nil {
		r.logger.Warn("record run history failed", zap.Error(recErr))
	}

	if err == nil && r.topic != "" {
		if _, pubErr := r.pub.Publish(ctx, r.topic, runNotification{
			RunID:       result.RunID,
			Channel:     result.Channel,
			Products:    result.Len(),
			ArtifactURI: uri,
		}); pubErr != nil {
			r.logger.Warn("publish run notification failed", zap.Error(pubErr))
		}
	}

	if err != nil {
		return result, fmt.Errorf("scrape run: %w", err)
	}
	return result, nil
}

func (r *recordingRunner) writeArtifact(ctx context.Context, result scrape.ScrapeResult) string {
	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		r.logger.Warn("marshal snapshot failed", zap.Error(err))
		return ""
	}
	uri, err := r.blobs.PutObject(ctx, r.artifactPath, "application/json", bytes.NewReader(payload))
	if err != nil {
		r.logger.Warn("write snapshot failed", zap.Error(err))
		return ""
	}
	r.logger.Info("snapshot written", zap.String("uri", uri), zap.Int("products", result.Len()))
	return uri
}

type runNotification struct {
	RunID       string `json:"run_id"`
	Channel     string `json:"channel"`
	Products    int    `json:"products"`
	ArtifactURI string `json:"artifact_uri,omitempty"`
}
