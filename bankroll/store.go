/*
store.go - Persistence and notification interfaces consumed by the engine

PURPOSE:
  The engine does not own storage or delivery. It consumes:
  - Store:    get/list/update of sessions, participants and requests
  - Notifier: fire-and-forget user notifications

CONDITIONAL UPDATES:
  Every Update* call is atomic per document. The store loads the current
  document, passes a copy to fn, and writes the copy back only if fn returns
  nil. Status guards run inside fn, so two callers racing on the same entity
  see exactly one success:

    err := store.UpdateRequest(ctx, id, func(r *Request) error {
        if r.Status != RequestPending {
            return invalidState(...)
        }
        r.Status = RequestApproved
        return nil
    })

  There is NO cross-document transaction. Operations that touch two
  documents (confirm: participant then session) are sagas; see pools.go.

NOT FOUND:
  Get and Update calls return an error wrapping ErrNotFound when the
  document does not exist.

IMPLEMENTATIONS:
  - bankroll/store/memory.go: In-memory for tests and demos
  - store/sqlite/sqlite.go:   SQLite documents with per-call transactions
*/
package bankroll

import (
	"context"
	"time"
)

// =============================================================================
// STORE
// =============================================================================

type SessionStore interface {
	CreateSession(ctx context.Context, s Session) error
	GetSession(ctx context.Context, id SessionID) (*Session, error)
	ListSessions(ctx context.Context) ([]Session, error)
	UpdateSession(ctx context.Context, id SessionID, fn func(*Session) error) (*Session, error)
}

type ParticipantStore interface {
	CreateParticipant(ctx context.Context, p Participant) error
	GetParticipant(ctx context.Context, sessionID SessionID, token Token) (*Participant, error)
	// ListParticipants returns participants in join order.
	ListParticipants(ctx context.Context, sessionID SessionID) ([]Participant, error)
	UpdateParticipant(ctx context.Context, sessionID SessionID, token Token, fn func(*Participant) error) (*Participant, error)
}

type RequestStore interface {
	CreateRequest(ctx context.Context, r Request) error
	GetRequest(ctx context.Context, id RequestID) (*Request, error)
	// ListRequests returns requests in creation order.
	ListRequests(ctx context.Context, sessionID SessionID) ([]Request, error)
	UpdateRequest(ctx context.Context, id RequestID, fn func(*Request) error) (*Request, error)
}

// Store is everything the engine persists.
type Store interface {
	SessionStore
	ParticipantStore
	RequestStore
}

// =============================================================================
// NOTIFIER
// =============================================================================

type NotificationType string

const (
	NotifyRequestCreated  NotificationType = "request_created"
	NotifyRequestApproved NotificationType = "request_approved"
	NotifyRequestDeclined NotificationType = "request_declined"
	NotifyRequestEdited   NotificationType = "request_edited"
	NotifyCountRejected   NotificationType = "count_rejected"
	NotifyCheckoutDone    NotificationType = "checkout_done"
	NotifyDistributed     NotificationType = "distribution_ready"
	NotifySettling        NotificationType = "session_settling"
)

type Notification struct {
	SessionID SessionID        `json:"session_id"`
	Recipient Token            `json:"recipient"`
	Type      NotificationType `json:"type"`
	Message   string           `json:"message"`
	RelatedID string           `json:"related_id,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// Notifier delivers notifications. Delivery has no retry contract; the
// engine logs errors and carries on.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}
