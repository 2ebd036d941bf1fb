package bankroll_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/warp/bankroll/bankroll"
	"github.com/warp/bankroll/bankroll/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type recordingNotifier struct {
	mu   sync.Mutex
	sent []bankroll.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n bankroll.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func (r *recordingNotifier) to(token bankroll.Token, typ bankroll.NotificationType) []bankroll.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []bankroll.Notification
	for _, n := range r.sent {
		if n.Recipient == token && n.Type == typ {
			out = append(out, n)
		}
	}
	return out
}

type fixture struct {
	t       *testing.T
	ctx     context.Context
	engine  *bankroll.Engine
	store   *store.Memory
	notes   *recordingNotifier
	session bankroll.SessionID
	manager bankroll.Token
}

func newEngine(t *testing.T) (*bankroll.Engine, *store.Memory, *recordingNotifier) {
	mem := store.NewMemory()
	notes := &recordingNotifier{}
	e := bankroll.NewEngine(mem, notes)

	var seq atomic.Int64
	e.NewID = func() string { return fmt.Sprintf("id-%d", seq.Add(1)) }
	clock := time.Date(2025, time.March, 1, 20, 0, 0, 0, time.UTC)
	e.Now = func() time.Time { return clock }
	return e, mem, notes
}

// newFixture opens a session run by "manager".
func newFixture(t *testing.T) *fixture {
	e, mem, notes := newEngine(t)
	ctx := context.Background()
	s, m, err := e.CreateSession(ctx, "friday game", "manager")
	require.NoError(t, err)
	return &fixture{t: t, ctx: ctx, engine: e, store: mem, notes: notes, session: s.ID, manager: m.Token}
}

func (f *fixture) join(name string) bankroll.Token {
	p, err := f.engine.Join(f.ctx, f.session, name)
	require.NoError(f.t, err)
	return p.Token
}

// buy creates and approves a buy-in request.
func (f *fixture) buy(token bankroll.Token, typ bankroll.RequestType, amount string) *bankroll.Request {
	r, err := f.engine.CreateRequest(f.ctx, bankroll.CreateRequestInput{
		SessionID:   f.session,
		Beneficiary: token,
		Type:        typ,
		Amount:      dec(amount),
	})
	require.NoError(f.t, err)
	r, err = f.engine.Approve(f.ctx, r.ID, f.manager)
	require.NoError(f.t, err)
	return r
}

func (f *fixture) settle() *bankroll.Session {
	s, err := f.engine.StartSettling(f.ctx, f.session, f.manager)
	require.NoError(f.t, err)
	return s
}

// count submits and validates a chip count.
func (f *fixture) count(token bankroll.Token, chips string, pref bankroll.Split) *bankroll.Participant {
	_, err := f.engine.SubmitCount(f.ctx, f.session, token, dec(chips), pref)
	require.NoError(f.t, err)
	p, err := f.engine.ValidateCount(f.ctx, f.session, token)
	require.NoError(f.t, err)
	return p
}

func (f *fixture) bank() bankroll.Bank {
	s, err := f.engine.GetSession(f.ctx, f.session)
	require.NoError(f.t, err)
	return s.Bank
}

func (f *fixture) participant(token bankroll.Token) *bankroll.Participant {
	p, err := f.engine.GetParticipant(f.ctx, f.session, token)
	require.NoError(f.t, err)
	return p
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func split(cash, credit string) bankroll.Split {
	return bankroll.Split{Cash: dec(cash), Credit: dec(credit)}
}

func noPref() bankroll.Split {
	return split("0", "0")
}

func requireDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "expected %s, got %s", want, got)
}
