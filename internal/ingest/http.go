package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	defaultMaxRetries = 5
	defaultRetryWait  = 5 * time.Second
	defaultTimeout    = 15 * time.Second
)

// retryingGetter performs GET requests, backing off on 429 responses.
type retryingGetter struct {
	client     *http.Client
	maxRetries int
	retryWait  time.Duration
	logger     logrus.FieldLogger
}

func newRetryingGetter(logger logrus.FieldLogger) retryingGetter {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return retryingGetter{
		client:     &http.Client{Timeout: defaultTimeout},
		maxRetries: defaultMaxRetries,
		retryWait:  defaultRetryWait,
		logger:     logger,
	}
}

// getJSON fetches url and decodes the JSON body into out.
func (g retryingGetter) getJSON(ctx context.Context, url string, out any) error {
	for attempt := range g.maxRetries {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("building request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := g.client.Do(req)
		if err != nil {
			return fmt.Errorf("HTTP request: %w", err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("reading body: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			wait := time.Duration(attempt+1) * g.retryWait
			g.logger.WithFields(logrus.Fields{
				"url":     url,
				"attempt": attempt + 1,
				"wait":    wait.String(),
			}).Warn("rate limited, backing off")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("%w: %d: %s", ErrUpstreamStatus, resp.StatusCode, truncate(body, 200))
		}

		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("parsing JSON: %w", err)
		}
		return nil
	}
	return fmt.Errorf("%w: exhausted %d retries", ErrRateLimited, g.maxRetries)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
