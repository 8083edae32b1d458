// services/balance_stream.go
package services

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"watch-reward-system/metrics"
	"watch-reward-system/models"
)

// BalanceStream pushes new ledger entries to the user as server-sent events.
type BalanceStream struct {
	Ledger       *LedgerService
	PollInterval time.Duration
}

func NewBalanceStream(ledger *LedgerService) *BalanceStream {
	return &BalanceStream{Ledger: ledger, PollInterval: 2 * time.Second}
}

// CreditEvent is the payload of one `event: credit` message.
type CreditEvent struct {
	EntryID      string    `json:"entryId"`
	VideoID      string    `json:"videoId"`
	Delta        int64     `json:"delta"`
	BalanceAfter int64     `json:"balanceAfter"`
	CreatedAt    time.Time `json:"createdAt"`
}

func creditEvent(e models.LedgerEntry) CreditEvent {
	return CreditEvent{
		EntryID:      e.ID,
		VideoID:      e.VideoID,
		Delta:        e.Delta,
		BalanceAfter: e.BalanceAfter,
		CreatedAt:    e.CreatedAt,
	}
}

// StreamBalanceSSE streams credits for the authenticated user.
func (s *BalanceStream) StreamBalanceSSE(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	reqCtx := c.Context()
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			select {
			case <-reqCtx.Done():
				cancel()
			case <-ctx.Done():
			}
		}()

		ticker := time.NewTicker(s.PollInterval)
		defer ticker.Stop()

		metrics.BalanceStreams.Inc()
		defer metrics.BalanceStreams.Dec()

		if err := s.pump(ctx, w, userID, ticker.C); err != nil {
			log.Printf("[SSE] stream for user %s closed: %v", userID, err)
		}
	})
	return nil
}

// pump writes a keepalive, then every new ledger entry on each tick, until ctx
// ends or the client goes away.
func (s *BalanceStream) pump(ctx context.Context, w *bufio.Writer, userID string, ticks <-chan time.Time) error {
	var cursor EntryCursor
	latest, err := s.Ledger.History(ctx, userID, 1)
	if err != nil {
		log.Printf("[SSE] init error for user %s: %v", userID, err)
	} else if len(latest) > 0 {
		cursor = CursorOf(latest[0])
	}

	if _, err := w.WriteString(":\n\n"); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticks:
			entries, err := s.Ledger.EntriesAfter(ctx, userID, cursor)
			if err != nil {
				log.Printf("[SSE] query error for user %s: %v", userID, err)
				continue
			}
			if len(entries) == 0 {
				continue
			}
			cursor = CursorOf(entries[len(entries)-1])

			for _, e := range entries {
				payload, err := json.Marshal(creditEvent(e))
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "event: credit\ndata: %s\n\n", payload)
			}
			if err := w.Flush(); err != nil {
				return fmt.Errorf("client disconnected: %w", err)
			}
		}
	}
}
