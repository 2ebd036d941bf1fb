/*
session.go - Coarse session lifecycle

PURPOSE:
  Gates which operations are legal:

    ACCEPTING ──startSettling──▶ SETTLING ──close──▶ CLOSED

  ACCEPTING: buy-in requests, joins, mid-session checkouts
  SETTLING:  counts, credit deduction, distribution
  CLOSED:    read-only

START SETTLING:
  1. Flip status ACCEPTING -> SETTLING (conditional)
  2. Decline every pending request
  3. Freeze every ACTIVE participant (frozen buy-in snapshot)
  4. cash_pool = Σ frozen cash_in - cash already paid to done participants

CLOSE:
  Only when every participant is DONE. The error names who is not.
*/
package bankroll

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CREATE / JOIN
// =============================================================================

// CreateSession opens a new session and registers its manager.
func (e *Engine) CreateSession(ctx context.Context, name, managerName string) (*Session, *Participant, error) {
	if managerName == "" {
		return nil, nil, fmt.Errorf("manager name is required")
	}
	now := e.Now()
	s := Session{
		ID:        SessionID(e.NewID()),
		Name:      name,
		Status:    SessionAccepting,
		Bank:      NewBank(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.Store.CreateSession(ctx, s); err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}
	m, err := e.addParticipant(ctx, s.ID, managerName, true)
	if err != nil {
		return nil, nil, err
	}
	log.Printf("[Engine] session %s (%q) opened by %s", s.ID, s.Name, managerName)
	return &s, m, nil
}

// Join adds a participant while the session accepts buy-ins.
func (e *Engine) Join(ctx context.Context, sessionID SessionID, name string) (*Participant, error) {
	if name == "" {
		return nil, fmt.Errorf("participant name is required")
	}
	if _, err := e.session(ctx, sessionID, SessionAccepting); err != nil {
		return nil, err
	}
	return e.addParticipant(ctx, sessionID, name, false)
}

func (e *Engine) addParticipant(ctx context.Context, sessionID SessionID, name string, manager bool) (*Participant, error) {
	p := Participant{
		Token:             Token(e.NewID()),
		SessionID:         sessionID,
		Name:              name,
		Manager:           manager,
		Checkout:          CheckoutActive,
		OutstandingCredit: decimal.Zero,
		Preference:        Split{Cash: decimal.Zero, Credit: decimal.Zero},
		JoinedAt:          e.Now(),
	}
	if err := e.Store.CreateParticipant(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to add participant: %w", err)
	}
	return &p, nil
}

// =============================================================================
// START SETTLING
// =============================================================================

// StartSettling stops buy-ins and freezes every active participant.
func (e *Engine) StartSettling(ctx context.Context, sessionID SessionID, resolver Token) (*Session, error) {
	now := e.Now()
	if _, err := e.Store.UpdateSession(ctx, sessionID, func(s *Session) error {
		if s.Status != SessionAccepting {
			return invalidState("session "+string(s.ID), s.Status, "settling can only start while accepting")
		}
		s.Status = SessionSettling
		s.FrozenAt = &now
		s.UpdatedAt = now
		return nil
	}); err != nil {
		return nil, err
	}

	if err := e.declinePending(ctx, sessionID, resolver); err != nil {
		return nil, err
	}
	requests, err := e.Store.ListRequests(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	participants, err := e.Store.ListParticipants(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	for i, p := range participants {
		if p.Checkout != CheckoutActive {
			continue
		}
		frozen, err := e.freeze(ctx, sessionID, p.Token, requests)
		if err != nil {
			return nil, fmt.Errorf("failed to freeze %s: %w", p.Name, err)
		}
		participants[i] = *frozen
		e.notify(ctx, sessionID, p.Token, NotifySettling, string(sessionID),
			"Settling started: please submit your chip count")
	}

	cashPool := derivedCashPool(participants, requests)
	s, err := e.Store.UpdateSession(ctx, sessionID, func(s *Session) error {
		s.Bank.CashPool = cashPool
		s.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[Engine] session %s settling: %d participants, cash pool %s", sessionID, len(participants), cashPool)
	return s, nil
}

// =============================================================================
// CLOSE
// =============================================================================

// Close ends a settling session once every participant is DONE.
func (e *Engine) Close(ctx context.Context, sessionID SessionID) (*Session, error) {
	participants, err := e.Store.ListParticipants(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	var notDone []string
	for _, p := range sortByName(participants) {
		if p.Checkout != CheckoutDone {
			notDone = append(notDone, fmt.Sprintf("%s (%s)", p.Name, p.Checkout))
		}
	}

	now := e.Now()
	s, err := e.Store.UpdateSession(ctx, sessionID, func(s *Session) error {
		if s.Status != SessionSettling {
			return invalidState("session "+string(s.ID), s.Status, "only a settling session can be closed")
		}
		if len(notDone) > 0 {
			return invalidState("session "+string(s.ID), s.Status, "participants not done: "+nameList(notDone))
		}
		s.Status = SessionClosed
		s.ClosedAt = &now
		s.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[Engine] session %s closed", sessionID)
	return s, nil
}

// =============================================================================
// READS
// =============================================================================

func (e *Engine) GetSession(ctx context.Context, id SessionID) (*Session, error) {
	return e.Store.GetSession(ctx, id)
}

func (e *Engine) ListSessions(ctx context.Context) ([]Session, error) {
	return e.Store.ListSessions(ctx)
}

func (e *Engine) GetParticipant(ctx context.Context, sessionID SessionID, token Token) (*Participant, error) {
	return e.Store.GetParticipant(ctx, sessionID, token)
}

func (e *Engine) ListParticipants(ctx context.Context, sessionID SessionID) ([]Participant, error) {
	if _, err := e.Store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	return e.Store.ListParticipants(ctx, sessionID)
}

// Summary is a read-only view of a session's settlement progress.
type Summary struct {
	Session         Session
	Phase           SettlementPhase
	Participants    int
	Done            int
	PendingRequests int
	Balanced        bool
	Derived         Pools
	AsOf            time.Time
}

// Summary reports progress and whether stored pools match the derived ones.
func (e *Engine) Summary(ctx context.Context, sessionID SessionID) (*Summary, error) {
	s, err := e.Store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	participants, err := e.Store.ListParticipants(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	requests, err := e.Store.ListRequests(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	sum := &Summary{
		Session:      *s,
		Phase:        PhaseOf(s, participants),
		Participants: len(participants),
		Balanced:     s.Bank.Balanced(),
		Derived:      DerivePools(participants, requests),
		AsOf:         e.Now(),
	}
	for _, p := range participants {
		if p.Checkout == CheckoutDone {
			sum.Done++
		}
	}
	for _, r := range requests {
		if r.Status == RequestPending {
			sum.PendingRequests++
		}
	}
	return sum, nil
}
