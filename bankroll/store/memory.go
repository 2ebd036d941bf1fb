// Package store provides bankroll.Store implementations.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/warp/bankroll/bankroll"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	sessions     map[bankroll.SessionID]bankroll.Session
	sessionOrder []bankroll.SessionID
	participants map[participantKey]bankroll.Participant
	joinOrder    map[bankroll.SessionID][]bankroll.Token
	requests     map[bankroll.RequestID]bankroll.Request
	requestOrder map[bankroll.SessionID][]bankroll.RequestID
}

type participantKey struct {
	SessionID bankroll.SessionID
	Token     bankroll.Token
}

func NewMemory() *Memory {
	return &Memory{
		sessions:     make(map[bankroll.SessionID]bankroll.Session),
		participants: make(map[participantKey]bankroll.Participant),
		joinOrder:    make(map[bankroll.SessionID][]bankroll.Token),
		requests:     make(map[bankroll.RequestID]bankroll.Request),
		requestOrder: make(map[bankroll.SessionID][]bankroll.RequestID),
	}
}

var _ bankroll.Store = (*Memory)(nil)

// =============================================================================
// SESSIONS
// =============================================================================

func (m *Memory) CreateSession(_ context.Context, s bankroll.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[s.ID]; ok {
		return fmt.Errorf("session %s already exists", s.ID)
	}
	m.sessions[s.ID] = s.Clone()
	m.sessionOrder = append(m.sessionOrder, s.ID)
	return nil
}

func (m *Memory) GetSession(_ context.Context, id bankroll.SessionID) (*bankroll.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, &bankroll.NotFoundError{Kind: "session", ID: string(id)}
	}
	c := s.Clone()
	return &c, nil
}

func (m *Memory) ListSessions(_ context.Context) ([]bankroll.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]bankroll.Session, 0, len(m.sessionOrder))
	for _, id := range m.sessionOrder {
		result = append(result, m.sessions[id].Clone())
	}
	return result, nil
}

// UpdateSession runs fn on a copy and stores it only if fn succeeds.
func (m *Memory) UpdateSession(_ context.Context, id bankroll.SessionID, fn func(*bankroll.Session) error) (*bankroll.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, &bankroll.NotFoundError{Kind: "session", ID: string(id)}
	}
	c := s.Clone()
	if err := fn(&c); err != nil {
		return nil, err
	}
	m.sessions[id] = c.Clone()
	return &c, nil
}

// =============================================================================
// PARTICIPANTS
// =============================================================================

func (m *Memory) CreateParticipant(_ context.Context, p bankroll.Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[p.SessionID]; !ok {
		return &bankroll.NotFoundError{Kind: "session", ID: string(p.SessionID)}
	}
	k := participantKey{SessionID: p.SessionID, Token: p.Token}
	if _, ok := m.participants[k]; ok {
		return fmt.Errorf("participant %s already exists", p.Token)
	}
	m.participants[k] = p.Clone()
	m.joinOrder[p.SessionID] = append(m.joinOrder[p.SessionID], p.Token)
	return nil
}

func (m *Memory) GetParticipant(_ context.Context, sessionID bankroll.SessionID, token bankroll.Token) (*bankroll.Participant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.participants[participantKey{SessionID: sessionID, Token: token}]
	if !ok {
		return nil, &bankroll.NotFoundError{Kind: "participant", ID: string(token)}
	}
	c := p.Clone()
	return &c, nil
}

func (m *Memory) ListParticipants(_ context.Context, sessionID bankroll.SessionID) ([]bankroll.Participant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tokens := m.joinOrder[sessionID]
	result := make([]bankroll.Participant, 0, len(tokens))
	for _, t := range tokens {
		result = append(result, m.participants[participantKey{SessionID: sessionID, Token: t}].Clone())
	}
	return result, nil
}

func (m *Memory) UpdateParticipant(_ context.Context, sessionID bankroll.SessionID, token bankroll.Token, fn func(*bankroll.Participant) error) (*bankroll.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := participantKey{SessionID: sessionID, Token: token}
	p, ok := m.participants[k]
	if !ok {
		return nil, &bankroll.NotFoundError{Kind: "participant", ID: string(token)}
	}
	c := p.Clone()
	if err := fn(&c); err != nil {
		return nil, err
	}
	m.participants[k] = c.Clone()
	return &c, nil
}

// =============================================================================
// REQUESTS
// =============================================================================

func (m *Memory) CreateRequest(_ context.Context, r bankroll.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.requests[r.ID]; ok {
		return fmt.Errorf("request %s already exists", r.ID)
	}
	m.requests[r.ID] = r.Clone()
	m.requestOrder[r.SessionID] = append(m.requestOrder[r.SessionID], r.ID)
	return nil
}

func (m *Memory) GetRequest(_ context.Context, id bankroll.RequestID) (*bankroll.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.requests[id]
	if !ok {
		return nil, &bankroll.NotFoundError{Kind: "request", ID: string(id)}
	}
	c := r.Clone()
	return &c, nil
}

func (m *Memory) ListRequests(_ context.Context, sessionID bankroll.SessionID) ([]bankroll.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.requestOrder[sessionID]
	result := make([]bankroll.Request, 0, len(ids))
	for _, id := range ids {
		result = append(result, m.requests[id].Clone())
	}
	return result, nil
}

func (m *Memory) UpdateRequest(_ context.Context, id bankroll.RequestID, fn func(*bankroll.Request) error) (*bankroll.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.requests[id]
	if !ok {
		return nil, &bankroll.NotFoundError{Kind: "request", ID: string(id)}
	}
	c := r.Clone()
	if err := fn(&c); err != nil {
		return nil, err
	}
	m.requests[id] = c.Clone()
	return &c, nil
}
