// Package client calls the watch reward API on behalf of a playback session.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"watch-reward-system/playback"
)

var (
	// ErrOutcomeUnknown means every attempt failed in transit; the credit may
	// or may not have been recorded.
	ErrOutcomeUnknown = errors.New("ledger outcome unknown")
	ErrUnauthorized   = errors.New("ledger rejected credentials")
	ErrVideoNotFound  = errors.New("video not found")
)

// LedgerClient implements playback.Completer over POST /watch/complete.
type LedgerClient struct {
	BaseURL     string
	Token       string // gateway bearer token
	UserID      string
	Client      *http.Client
	MaxAttempts int
	Backoff     time.Duration
}

var _ playback.Completer = (*LedgerClient)(nil)

func NewLedgerClient(baseURL, token, userID string) *LedgerClient {
	return &LedgerClient{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		Token:       token,
		UserID:      userID,
		Client:      &http.Client{Timeout: 10 * time.Second},
		MaxAttempts: 3,
		Backoff:     250 * time.Millisecond,
	}
}

type completeRequest struct {
	VideoID          string `json:"videoId"`
	WatchTimeSeconds int    `json:"watchTimeSeconds"`
}

// retryable marks failures where the request may not have reached the ledger
// or the ledger failed mid-way.
type retryable struct{ err error }

func (r retryable) Error() string { return r.err.Error() }
func (r retryable) Unwrap() error { return r.err }

// CompleteWatch reports a finished watch. Replays are safe because the ledger
// credits at most once per window, so transport failures and 5xx are retried
// with the same body.
func (c *LedgerClient) CompleteWatch(ctx context.Context, videoID string, watchTimeSeconds int) (*playback.Completion, error) {
	body, err := json.Marshal(completeRequest{VideoID: videoID, WatchTimeSeconds: watchTimeSeconds})
	if err != nil {
		return nil, err
	}

	attempts := c.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			wait := c.Backoff * time.Duration(attempt-1)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrOutcomeUnknown, ctx.Err())
			case <-time.After(wait):
			}
		}

		out, err := c.post(ctx, body)
		if err == nil {
			return out, nil
		}
		var r retryable
		if !errors.As(err, &r) {
			return nil, err
		}
		lastErr = err
		log.Printf("[CLIENT] ⚠️ completeWatch attempt %d/%d for %s failed: %v", attempt, attempts, videoID, err)
	}
	return nil, fmt.Errorf("%w: %v", ErrOutcomeUnknown, lastErr)
}

func (c *LedgerClient) post(ctx context.Context, body []byte) (*playback.Completion, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/watch/complete", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("X-User-ID", c.UserID)

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, retryable{err}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusOK:
		var out playback.Completion
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, retryable{fmt.Errorf("decode response: %w", err)}
		}
		return &out, nil
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrVideoNotFound
	case resp.StatusCode >= 500:
		return nil, retryable{fmt.Errorf("ledger returned %d", resp.StatusCode)}
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("ledger returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
}
