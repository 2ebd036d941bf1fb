/*
Package notify delivers bankroll notifications.

PURPOSE:
  The engine emits a Notification for every event a participant should hear
  about (request resolved, count rejected, payout ready). Delivery is
  fire-and-forget: implementations return an error, the engine logs it and
  moves on.

IMPLEMENTATIONS:
  Log:    Writes each notification to the standard logger
  Memory: Keeps a per-recipient inbox in process
  Redis:  RPUSH onto a per-recipient list and PUBLISH for live listeners
  Multi:  Fans one notification out to several notifiers

INBOX:
  Memory and Redis also implement Inbox, so the API can show a participant
  what they have been told.
*/
package notify

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/warp/bankroll/bankroll"
)

// Inbox reads back what a recipient has been sent, oldest first.
type Inbox interface {
	Inbox(ctx context.Context, recipient bankroll.Token) ([]bankroll.Notification, error)
}

// =============================================================================
// LOG
// =============================================================================

type Log struct{}

func (Log) Notify(_ context.Context, n bankroll.Notification) error {
	log.Printf("[Notify] session=%s to=%s type=%s: %s", n.SessionID, n.Recipient, n.Type, n.Message)
	return nil
}

// =============================================================================
// MEMORY
// =============================================================================

// Memory keeps the most recent notifications per recipient.
type Memory struct {
	mu    sync.RWMutex
	limit int
	boxes map[bankroll.Token][]bankroll.Notification
}

// NewMemory keeps at most limit notifications per recipient (0 = unbounded).
func NewMemory(limit int) *Memory {
	return &Memory{limit: limit, boxes: make(map[bankroll.Token][]bankroll.Notification)}
}

func (m *Memory) Notify(_ context.Context, n bankroll.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	box := append(m.boxes[n.Recipient], n)
	if m.limit > 0 && len(box) > m.limit {
		box = box[len(box)-m.limit:]
	}
	m.boxes[n.Recipient] = box
	return nil
}

func (m *Memory) Inbox(_ context.Context, recipient bankroll.Token) ([]bankroll.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]bankroll.Notification{}, m.boxes[recipient]...), nil
}

// =============================================================================
// MULTI
// =============================================================================

type multi []bankroll.Notifier

// Multi delivers to every notifier and joins their errors.
func Multi(notifiers ...bankroll.Notifier) bankroll.Notifier {
	return multi(notifiers)
}

func (m multi) Notify(ctx context.Context, n bankroll.Notification) error {
	var errs []error
	for _, to := range m {
		if err := to.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
