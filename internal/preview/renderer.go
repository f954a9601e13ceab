// Package preview renders bet slip artifacts through the external slip
// renderer service.
package preview

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/wagerdeck/wagerdeck-bot/internal/domain"
	apperrors "github.com/wagerdeck/wagerdeck-bot/internal/errors"
	"github.com/wagerdeck/wagerdeck-bot/pkg/metrics"
)

const maxArtifactBytes = 10 << 20

// Renderer calls the slip renderer HTTP service and returns the produced
// image bytes. The service is stateless, so failed calls are retried with
// backoff before giving up.
type Renderer struct {
	url    string
	client *http.Client
	log    *slog.Logger
}

// NewRenderer builds a Renderer for the service at url.
func NewRenderer(url string, timeout time.Duration, log *slog.Logger) *Renderer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Renderer{
		url:    url,
		client: &http.Client{Timeout: timeout},
		log:    log,
	}
}

// Render posts the record to the renderer and returns the artifact bytes.
func (r *Renderer) Render(ctx context.Context, rec *domain.BetRecord) ([]byte, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode render request: %w", err)
	}

	var artifact []byte
	err = apperrors.WithRetry(ctx, func() error {
		data, callErr := r.renderOnce(ctx, payload)
		if callErr != nil {
			return callErr
		}
		artifact = data
		return nil
	})
	if err != nil {
		metrics.RecordRenderFailure()
		if r.log != nil {
			r.log.Warn("slip render failed", slog.Any("error", err))
		}
		return nil, err
	}

	return artifact, nil
}

func (r *Renderer) renderOnce(ctx context.Context, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build render request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, apperrors.NewTransientError("slip renderer", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("renderer responded %d", resp.StatusCode)
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, apperrors.NewTransientError("slip renderer", err)
		}
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxArtifactBytes))
	if err != nil {
		return nil, apperrors.NewTransientError("slip renderer", err)
	}
	if len(data) == 0 {
		return nil, apperrors.NewTransientError("slip renderer", fmt.Errorf("empty artifact"))
	}

	return data, nil
}
