package payout

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/AlenaMolokova/receiptbank/internal/models"
	"github.com/cenkalti/backoff/v5"
)

var (
	ErrRateLimit   = errors.New("payout provider rate limit exceeded")
	ErrUnavailable = errors.New("payout provider unavailable")
	ErrNotFound    = errors.New("payout not found")
)

// Client talks to the remote payout provider over HTTP. Throttling and server
// errors are retried with exponential backoff; anything else is returned as
// is.
type Client struct {
	baseURL  string
	client   *http.Client
	maxTries uint
	initial  time.Duration
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

func WithRetry(maxTries uint, initial time.Duration) Option {
	return func(c *Client) {
		c.maxTries = maxTries
		c.initial = initial
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		maxTries: 4,
		initial:  200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type submitRequest struct {
	WithdrawalID string `json:"withdrawal_id"`
	UserID       string `json:"user_id"`
	Amount       string `json:"amount"`
	Method       string `json:"method"`
	Destination  string `json:"destination"`
}

type statusResponse struct {
	WithdrawalID  string `json:"withdrawal_id"`
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason,omitempty"`
}

func (c *Client) retry(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initial
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, op()
	}, backoff.WithBackOff(b), backoff.WithMaxTries(c.maxTries))
	return err
}

// Submit hands the withdrawal to the provider. A 409 means the provider already
// has it, which is treated as success.
func (c *Client) Submit(ctx context.Context, w models.Withdrawal) error {
	body, err := json.Marshal(submitRequest{
		WithdrawalID: w.ID,
		UserID:       w.UserID,
		Amount:       w.Amount.StringFixed(2),
		Method:       w.Method,
		Destination:  w.Destination,
	})
	if err != nil {
		return fmt.Errorf("failed to encode payout %s: %w", w.ID, err)
	}

	return c.retry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/payouts", bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request for payout %s: %w", w.ID, err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("failed to submit payout %s: %w", w.ID, err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK, resp.StatusCode == http.StatusCreated,
			resp.StatusCode == http.StatusAccepted, resp.StatusCode == http.StatusConflict:
			return nil
		case resp.StatusCode == http.StatusTooManyRequests:
			return ErrRateLimit
		case resp.StatusCode >= http.StatusInternalServerError:
			return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
		default:
			return backoff.Permanent(fmt.Errorf("payout %s refused with status %d", w.ID, resp.StatusCode))
		}
	})
}

func (c *Client) Status(ctx context.Context, withdrawalID string) (models.PayoutOutcome, string, error) {
	var result statusResponse
	err := c.retry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/payouts/"+url.PathEscape(withdrawalID), nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request for payout %s: %w", withdrawalID, err))
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("failed to fetch payout %s: %w", withdrawalID, err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
			if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
				return backoff.Permanent(fmt.Errorf("failed to decode response for payout %s: %w", withdrawalID, err))
			}
			return nil
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(ErrNotFound)
		case resp.StatusCode == http.StatusTooManyRequests:
			return ErrRateLimit
		case resp.StatusCode >= http.StatusInternalServerError:
			return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
		default:
			return backoff.Permanent(fmt.Errorf("unexpected status code for payout %s: %d", withdrawalID, resp.StatusCode))
		}
	})
	if err != nil {
		return "", "", err
	}

	outcome, ok := models.ParsePayoutOutcome(result.Status)
	if !ok {
		return "", "", fmt.Errorf("%w: %q", models.ErrInvalidOutcome, result.Status)
	}
	return outcome, result.FailureReason, nil
}
