// Package docintel fetches structured extractions from the
// document-understanding service.
package docintel

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"bankruptcy-workers/internal/common/errors"
	"bankruptcy-workers/internal/common/logger"
)

type Config struct {
	BaseURL       string
	APIKey        string
	Timeout       time.Duration // per document, retries included
	RetryCount    int
	RetryWaitTime time.Duration
}

// ExtractionsResponse is the collaborator's reply for one document. Each
// extraction is kept as raw JSON; parsing happens when income is recomputed.
type ExtractionsResponse struct {
	DocumentID  string            `json:"documentId"`
	Extractions []json.RawMessage `json:"extractions"`
}

type Client struct {
	http    *resty.Client
	timeout time.Duration
	logger  logger.Logger
}

func NewClient(cfg Config, log logger.Logger) *Client {
	if cfg.RetryWaitTime <= 0 {
		cfg.RetryWaitTime = 500 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(cfg.RetryWaitTime).
		SetRetryMaxWaitTime(4 * cfg.RetryWaitTime).
		SetHeader("Accept", "application/json").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return r != nil && r.StatusCode() >= http.StatusInternalServerError
		})
	if cfg.APIKey != "" {
		client.SetHeader("X-API-Key", cfg.APIKey)
	}

	return &Client{
		http:    client,
		timeout: cfg.Timeout,
		logger:  log.WithFields(map[string]interface{}{"component": "docintel"}),
	}
}

// FetchExtractions returns the raw extraction payloads of one document.
// Failures come back as DOCINTEL_UNAVAILABLE or DOCINTEL_TIMEOUT.
func (c *Client) FetchExtractions(ctx context.Context, documentID string) ([]json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body ExtractionsResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("documentId", documentID).
		SetResult(&body).
		Get("/documents/{documentId}/extractions")
	if err != nil {
		if isTimeout(err) {
			return nil, errors.NewDocIntelTimeoutError(documentID)
		}
		return nil, errors.NewDocIntelUnavailableError(documentID, err)
	}
	if resp.IsError() {
		return nil, errors.NewDocIntelUnavailableError(documentID,
			fmt.Errorf("unexpected status %d", resp.StatusCode()))
	}

	c.logger.Debug("Fetched extractions", map[string]interface{}{
		"documentId": documentID,
		"count":      len(body.Extractions),
	})
	return body.Extractions, nil
}

func isTimeout(err error) bool {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return stderrors.As(err, &netErr) && netErr.Timeout()
}
