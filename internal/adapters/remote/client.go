// Package remote talks to the kanso sync server: snapshot upload and
// download over HTTP, and the realtime change channel over websocket.
package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/comitanigiacomo/kanso-organizer/internal/core/domain"
	"github.com/comitanigiacomo/kanso-organizer/internal/metrics"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
)

var _ domain.RemoteStore = (*Client)(nil)

const maxResponseSize = 16 << 20

type ClientConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// StatusError is returned for any non-2xx answer other than 404 on Load.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote %s: unexpected status %d: %s", e.Op, e.Status, e.Body)
}

// Client is the RemoteStore backed by the sync server HTTP API. Calls go
// through a circuit breaker so a dead server fails fast.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker[[]byte]
	logger  zerolog.Logger
}

func NewClient(cfg ClientConfig, logger zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}

	metrics.CircuitBreakerState.Set(0)
	c.cb = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "kanso-remote",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// a missing snapshot is a valid answer, not a sick server
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrSnapshotNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Info().Str("from", from.String()).Str("to", to.String()).Msg("[REMOTE] Circuit breaker state transition")
			metrics.CircuitBreakerState.Set(stateToFloat(to))
		},
	})

	return c
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func (c *Client) snapshotURL(key string) string {
	return c.baseURL + "/api/v1/snapshots/" + url.PathEscape(key)
}

func (c *Client) execute(op string, fn func() ([]byte, error)) ([]byte, error) {
	body, err := c.cb.Execute(fn)
	switch {
	case err == nil:
		metrics.RemoteRequests.WithLabelValues(op, "success").Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RemoteRequests.WithLabelValues(op, "rejected").Inc()
		c.logger.Debug().Err(err).Str("op", op).Msg("[REMOTE] Request rejected by circuit breaker")
	case errors.Is(err, domain.ErrSnapshotNotFound):
		metrics.RemoteRequests.WithLabelValues(op, "success").Inc()
	default:
		metrics.RemoteRequests.WithLabelValues(op, "failure").Inc()
	}
	return body, err
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return c.http.Do(req)
}

// Save uploads value with PUT. The call is an idempotent upsert.
func (c *Client) Save(ctx context.Context, key string, value []byte) error {
	_, err := c.execute("save", func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.snapshotURL(key), bytes.NewReader(value))
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.do(req)
		if err != nil {
			return nil, fmt.Errorf("remote save: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode/100 != 2 {
			return nil, statusError("save", resp)
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, nil
	})
	return err
}

// Load downloads the value under key, or returns domain.ErrSnapshotNotFound.
func (c *Client) Load(ctx context.Context, key string) ([]byte, error) {
	return c.execute("load", func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.snapshotURL(key), nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.do(req)
		if err != nil {
			return nil, fmt.Errorf("remote load: %w", err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, domain.ErrSnapshotNotFound
		case resp.StatusCode/100 != 2:
			return nil, statusError("load", resp)
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
		if err != nil {
			return nil, fmt.Errorf("remote load: read body: %w", err)
		}
		return body, nil
	})
}

func statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}
