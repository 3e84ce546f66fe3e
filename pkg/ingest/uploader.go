package ingest

import (
	"context"
	"fmt"
	"io"

	"ai-assistant-be/internal/pkg/logger"
	"ai-assistant-be/pkg/blob"
)

const (
	DefaultPerFileCap = 10 * 1024 * 1024
	DefaultTotalCap   = 25 * 1024 * 1024
)

// Uploader streams files into blob storage under the two independent
// size caps. A failed upload never leaves a partial object behind.
type Uploader struct {
	store      blob.Store
	log        logger.ILogger
	perFileCap int64
	totalCap   int64
}

func NewUploader(store blob.Store, log logger.ILogger, perFileCap, totalCap int64) *Uploader {
	if perFileCap <= 0 {
		perFileCap = DefaultPerFileCap
	}
	if totalCap <= 0 {
		totalCap = DefaultTotalCap
	}
	return &Uploader{store: store, log: log, perFileCap: perFileCap, totalCap: totalCap}
}

// NewBudget starts the combined-size accounting for one request.
func (u *Uploader) NewBudget() *TotalBudget {
	return NewTotalBudget(u.totalCap)
}

// Upload streams one file to the given storage key. The returned count
// is the number of decoded bytes actually written, for telemetry. On any
// failure the partially written blob is deleted before returning.
func (u *Uploader) Upload(ctx context.Context, budget *TotalBudget, key string, body io.Reader, contentType string) (int64, error) {
	capped := newCappedReader(body, u.perFileCap, budget)

	if err := u.store.Upload(ctx, key, capped, contentType); err != nil {
		if capped.err != nil {
			err = capped.err
		}

		if deleteErr := u.store.Delete(ctx, key); deleteErr != nil {
			u.log.Warn("Ingest", "Failed to delete partial blob after upload error", map[string]interface{}{
				"key":   key,
				"error": deleteErr.Error(),
			})
		}
		return 0, fmt.Errorf("upload %s: %w", key, err)
	}

	return capped.BytesRead(), nil
}
