package bankroll

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// Engine runs every settlement operation against a Store. All operations
// are synchronous; the engine keeps no state of its own between calls.
type Engine struct {
	Store    Store
	Notifier Notifier

	// Now and NewID are replaceable for deterministic tests.
	Now   func() time.Time
	NewID func() string
}

func NewEngine(store Store, notifier Notifier) *Engine {
	return &Engine{
		Store:    store,
		Notifier: notifier,
		Now:      func() time.Time { return time.Now().UTC() },
		NewID:    func() string { return uuid.NewString() },
	}
}

// notify is fire-and-forget.
func (e *Engine) notify(ctx context.Context, sessionID SessionID, to Token, typ NotificationType, related, format string, args ...any) {
	if e.Notifier == nil {
		return
	}
	n := Notification{
		SessionID: sessionID,
		Recipient: to,
		Type:      typ,
		Message:   fmt.Sprintf(format, args...),
		RelatedID: related,
		CreatedAt: e.Now(),
	}
	if err := e.Notifier.Notify(ctx, n); err != nil {
		log.Printf("[Engine] notification %s to %s dropped: %v", typ, to, err)
	}
}

// session loads a session and checks it is in one of the allowed statuses.
func (e *Engine) session(ctx context.Context, id SessionID, allowed ...SessionStatus) (*Session, error) {
	s, err := e.Store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, st := range allowed {
		if s.Status == st {
			return s, nil
		}
	}
	return nil, invalidState("session "+string(id), s.Status, fmt.Sprintf("requires %v", allowed))
}

// adjustBank applies a pool delta to the session document.
func (e *Engine) adjustBank(ctx context.Context, id SessionID, d BankDelta) (*Session, error) {
	if d.IsZero() {
		return e.Store.GetSession(ctx, id)
	}
	return e.Store.UpdateSession(ctx, id, func(s *Session) error {
		s.Bank.Apply(d)
		s.UpdatedAt = e.Now()
		return nil
	})
}

func participantSubject(p *Participant) string {
	return "participant " + p.Name
}
