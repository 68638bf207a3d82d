// Package client talks to the batch HTTP API: it submits events, retrying
// while the service sheds load, and polls a batch until it is done.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/okian/tdoa/internal/domain/model"
	"github.com/okian/tdoa/internal/domain/types"
	"github.com/okian/tdoa/pkg/logger"
)

// Client defaults.
const (
	defaultTimeout         = 30 * time.Second
	defaultPollInterval    = 100 * time.Millisecond
	defaultMaxPollInterval = 5 * time.Second
	defaultMaxElapsed      = 5 * time.Minute
)

// Client is a batch API client. It is safe for concurrent use.
type Client struct {
	baseURL         string
	http            *http.Client
	pollInterval    time.Duration
	maxPollInterval time.Duration
	maxElapsed      time.Duration
	logger          logger.Logger
}

// New creates a client for the service at baseURL, e.g. "http://localhost:9080".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:         strings.TrimRight(baseURL, "/"),
		http:            &http.Client{Timeout: defaultTimeout},
		pollInterval:    defaultPollInterval,
		maxPollInterval: defaultMaxPollInterval,
		maxElapsed:      defaultMaxElapsed,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.Named("client")
	}
	return c
}

// Submit posts a batch. Backpressure and unavailability responses are
// retried with exponential backoff; other failures return at once.
func (c *Client) Submit(ctx context.Context, batchID string, events []model.Event) (types.BatchReceipt, error) {
	body, err := json.Marshal(types.NewBatchRequest(batchID, events))
	if err != nil {
		return types.BatchReceipt{}, fmt.Errorf("%w: encode batch: %w", ErrEncode, err)
	}

	var receipt types.BatchReceipt
	op := func() error {
		err := c.do(ctx, http.MethodPost, "/batches", body, &receipt)
		if retryable(err) {
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}
	notify := func(err error, next time.Duration) {
		c.logger.Warn(ctx, "batch submission retrying", logger.Error(err), logger.Duration("next", next))
	}
	if err := backoff.RetryNotify(op, c.backoff(ctx), notify); err != nil {
		return types.BatchReceipt{}, err
	}
	return receipt, nil
}

// Batch fetches the current state of a batch.
func (c *Client) Batch(ctx context.Context, id string) (types.BatchStatus, error) {
	var status types.BatchStatus
	if err := c.do(ctx, http.MethodGet, "/batches/"+url.PathEscape(id), nil, &status); err != nil {
		return types.BatchStatus{}, err
	}
	return status, nil
}

// Wait polls a batch until every event has an outcome.
func (c *Client) Wait(ctx context.Context, id string) (types.BatchStatus, error) {
	errPending := errors.New("batch pending")

	var status types.BatchStatus
	op := func() error {
		s, err := c.Batch(ctx, id)
		switch {
		case err == nil:
		case retryable(err):
			return err
		default:
			return backoff.Permanent(err)
		}
		status = s
		if !s.Done() {
			return errPending
		}
		return nil
	}
	notify := func(err error, next time.Duration) {
		if errors.Is(err, errPending) {
			c.logger.Debug(ctx, "batch pending",
				logger.String("batch_id", id),
				logger.Int("completed", status.Completed),
				logger.Int("total", status.Total),
			)
			return
		}
		c.logger.Warn(ctx, "batch poll retrying", logger.Error(err), logger.Duration("next", next))
	}
	if err := backoff.RetryNotify(op, c.backoff(ctx), notify); err != nil {
		if errors.Is(err, errPending) {
			return status, fmt.Errorf("batch %q: %d of %d events after %s: %w",
				id, status.Completed, status.Total, c.maxElapsed, context.DeadlineExceeded)
		}
		return types.BatchStatus{}, err
	}
	return status, nil
}

func (c *Client) backoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.pollInterval
	b.MaxInterval = c.maxPollInterval
	b.MaxElapsedTime = c.maxElapsed
	return backoff.WithContext(b, ctx)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEncode, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrRequest, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		se := &StatusError{StatusCode: resp.StatusCode}
		var payload struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.NewDecoder(resp.Body).Decode(&payload) == nil {
			se.Code, se.Message = payload.Code, payload.Message
		}
		return se
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s %s: %w", ErrDecode, method, path, err)
	}
	return nil
}

// retryable reports transport failures and load-shedding statuses.
func retryable(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusTooManyRequests ||
			se.StatusCode == http.StatusServiceUnavailable ||
			se.StatusCode == http.StatusBadGateway ||
			se.StatusCode == http.StatusGatewayTimeout
	}
	return errors.Is(err, ErrRequest) && !errors.Is(err, context.Canceled)
}
