package bankroll_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/bankroll/bankroll"
)

// creditGame is a settled session:
//
//	manager: 100 cash, ends with  50  -> fast path, 50 cash
//	alice:   100 cash, ends with 250  -> wants 150 cash + 100 credit
//	bob:     100 credit, ends with 0  -> owes 100
type creditGame struct {
	*fixture
	alice, bob bankroll.Token
}

func newCreditGame(t *testing.T) *creditGame {
	f := newFixture(t)
	g := &creditGame{fixture: f, alice: f.join("alice"), bob: f.join("bob")}

	f.buy(f.manager, bankroll.RequestCash, "100")
	f.buy(g.alice, bankroll.RequestCash, "100")
	f.buy(g.bob, bankroll.RequestCredit, "100")
	requireDec(t, "200", f.settle().Bank.CashPool)

	f.count(f.manager, "50", noPref())
	f.count(g.alice, "250", split("150", "100"))
	f.count(g.bob, "0", noPref())
	return g
}

func (g *creditGame) allocation() map[bankroll.Token]bankroll.Distribution {
	return map[bankroll.Token]bankroll.Distribution{
		g.alice: {Cash: dec("150"), CreditFrom: []bankroll.CreditShare{{From: g.bob, Amount: dec("100")}}},
		g.bob:   {Cash: dec("0")},
	}
}

// =============================================================================
// SUGGEST
// =============================================================================

func TestSuggest_CashThenCredit(t *testing.T) {
	// GIVEN: 150 left in the cash pool, alice owed 250, bob owes 100
	// THEN: alice is proposed 150 cash + 100 credit from bob; bob nothing

	g := newCreditGame(t)

	proposals, err := g.engine.Suggest(g.ctx, g.session)
	require.NoError(t, err)
	require.Len(t, proposals, 2)

	alice, bob := proposals[0], proposals[1]
	assert.Equal(t, g.alice, alice.Token)
	requireDec(t, "250", alice.Owed)
	requireDec(t, "150", alice.Distribution.Cash)
	require.Len(t, alice.Distribution.CreditFrom, 1)
	assert.Equal(t, g.bob, alice.Distribution.CreditFrom[0].From)
	requireDec(t, "100", alice.Distribution.CreditFrom[0].Amount)

	assert.Equal(t, g.bob, bob.Token)
	requireDec(t, "0", bob.Distribution.Cash)
	assert.Empty(t, bob.Distribution.CreditFrom)

	// Suggest never writes.
	assert.Equal(t, bankroll.CheckoutCreditDeducted, g.participant(g.alice).Checkout)
}

func TestSuggestDistribution_NeverExceedsChipsAfterCredit(t *testing.T) {
	pending := func(token bankroll.Token, name, after, owed string, pref bankroll.Split) bankroll.Participant {
		return bankroll.Participant{
			Token: token, Name: name, Checkout: bankroll.CheckoutCreditDeducted, Preference: pref,
			Result: &bankroll.CreditDeduction{ChipsAfterCredit: dec(after), CreditOwed: dec(owed)},
		}
	}
	participants := []bankroll.Participant{
		pending("w1", "winner", "40", "0", noPref()),
		pending("w2", "other winner", "10", "0", split("5", "5")),
		pending("d1", "debtor", "0", "30", noPref()),
		{Token: "x", Name: "already done", Checkout: bankroll.CheckoutDone,
			Result: &bankroll.CreditDeduction{ChipsAfterCredit: dec("500")}},
	}

	proposals := bankroll.SuggestDistribution(participants, dec("1000"), dec("0"))

	require.Len(t, proposals, 3)
	for _, p := range proposals {
		total := p.Distribution.Cash.Add(p.Distribution.CreditTotal())
		assert.Truef(t, total.LessThanOrEqual(p.Owed), "%s proposed %s of %s", p.Name, total, p.Owed)
		if p.Token == "d1" {
			assert.True(t, total.IsZero(), "debtor proposed %s", total)
		}
	}
}

// =============================================================================
// OVERRIDE
// =============================================================================

func TestOverride_CashMustMatchPool(t *testing.T) {
	// GIVEN: cash pool 150
	// WHEN: the manager allocates 140 cash
	// THEN: InvalidAllocation and nobody moves

	g := newCreditGame(t)
	alloc := g.allocation()
	alloc[g.alice] = bankroll.Distribution{Cash: dec("140"), CreditFrom: alloc[g.alice].CreditFrom}

	_, err := g.engine.Override(g.ctx, g.session, alloc)

	require.Error(t, err)
	assert.True(t, errors.Is(err, bankroll.ErrInvalidAllocation), "got %v", err)
	var ae *bankroll.AllocationError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "150", ae.Expected)
	assert.Equal(t, bankroll.CheckoutCreditDeducted, g.participant(g.alice).Checkout)
	assert.Equal(t, bankroll.CheckoutCreditDeducted, g.participant(g.bob).Checkout)
}

func TestOverride_RejectsBadCredit(t *testing.T) {
	g := newCreditGame(t)

	tests := []struct {
		name  string
		alloc map[bankroll.Token]bankroll.Distribution
		want  error
	}{
		{
			name: "credit from self",
			alloc: map[bankroll.Token]bankroll.Distribution{
				g.alice: {Cash: dec("150"), CreditFrom: []bankroll.CreditShare{{From: g.alice, Amount: dec("10")}}},
			},
			want: bankroll.ErrInvalidAllocation,
		},
		{
			name: "credit from non-debtor",
			alloc: map[bankroll.Token]bankroll.Distribution{
				g.alice: {Cash: dec("150"), CreditFrom: []bankroll.CreditShare{{From: g.manager, Amount: dec("10")}}},
			},
			want: bankroll.ErrInvalidAllocation,
		},
		{
			name: "more than the debtor owes",
			alloc: map[bankroll.Token]bankroll.Distribution{
				g.alice: {Cash: dec("150"), CreditFrom: []bankroll.CreditShare{{From: g.bob, Amount: dec("101")}}},
			},
			want: bankroll.ErrInvalidAllocation,
		},
		{
			name: "negative cash",
			alloc: map[bankroll.Token]bankroll.Distribution{
				g.alice: {Cash: dec("160")},
				g.bob:   {Cash: dec("-10")},
			},
			want: bankroll.ErrInvalidAllocation,
		},
		{
			name: "participant already done",
			alloc: map[bankroll.Token]bankroll.Distribution{
				g.manager: {Cash: dec("150")},
			},
			want: bankroll.ErrInvalidState,
		},
		{
			name: "unknown participant",
			alloc: map[bankroll.Token]bankroll.Distribution{
				"ghost": {Cash: dec("150")},
			},
			want: bankroll.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.engine.Override(g.ctx, g.session, tt.alloc)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.Equal(t, bankroll.CheckoutCreditDeducted, g.participant(g.alice).Checkout)
		})
	}
}

func TestOverride_CanBeReissued(t *testing.T) {
	g := newCreditGame(t)

	_, err := g.engine.Override(g.ctx, g.session, g.allocation())
	require.NoError(t, err)

	alloc := g.allocation()
	alloc[g.alice] = bankroll.Distribution{Cash: dec("150"), CreditFrom: []bankroll.CreditShare{{From: g.bob, Amount: dec("60")}}}
	updated, err := g.engine.Override(g.ctx, g.session, alloc)
	require.NoError(t, err)
	require.Len(t, updated, 2)

	p := g.participant(g.alice)
	assert.Equal(t, bankroll.CheckoutDistributed, p.Checkout)
	requireDec(t, "60", p.Distribution.CreditTotal())
	assert.NotEmpty(t, g.notes.to(g.alice, bankroll.NotifyDistributed))
}

// =============================================================================
// CONFIRM / CLOSE
// =============================================================================

func TestCreditGame_ConservesEverything(t *testing.T) {
	// GIVEN: the credit game with the suggested allocation applied
	// WHEN: alice is confirmed before bob, then bob
	// THEN: every pool and chip total returns to zero and the session closes

	g := newCreditGame(t)
	_, err := g.engine.Override(g.ctx, g.session, g.allocation())
	require.NoError(t, err)

	_, err = g.engine.Confirm(g.ctx, g.session, g.alice)
	require.NoError(t, err)
	b := g.bank()
	requireDec(t, "0", b.CashPool)
	requireDec(t, "-100", b.CreditPool)

	p, err := g.engine.Confirm(g.ctx, g.session, g.bob)
	require.NoError(t, err)
	assert.True(t, p.CheckedOut)

	b = g.bank()
	requireDec(t, "0", b.CashPool)
	requireDec(t, "0", b.CreditPool)
	requireDec(t, "0", b.CashBalance)
	requireDec(t, "0", b.ChipsInPlay)
	requireDec(t, "300", b.ChipsIssued)
	assert.True(t, b.Balanced())

	sum, err := g.engine.Summary(g.ctx, g.session)
	require.NoError(t, err)
	assert.Equal(t, bankroll.PhaseComplete, sum.Phase)
	assert.Equal(t, 3, sum.Done)
	requireDec(t, "0", sum.Derived.CashPool)
	requireDec(t, "0", sum.Derived.CreditPool)

	s, err := g.engine.Close(g.ctx, g.session)
	require.NoError(t, err)
	assert.Equal(t, bankroll.SessionClosed, s.Status)
	require.NotNil(t, s.ClosedAt)
}

func TestConfirm_RequiresDistribution(t *testing.T) {
	g := newCreditGame(t)

	_, err := g.engine.Confirm(g.ctx, g.session, g.alice)
	assert.True(t, errors.Is(err, bankroll.ErrInvalidState), "got %v", err)

	_, err = g.engine.Confirm(g.ctx, g.session, g.manager)
	assert.True(t, errors.Is(err, bankroll.ErrInvalidState), "confirm done: %v", err)
}

func TestClose_NamesParticipantsNotDone(t *testing.T) {
	// GIVEN: bob still CREDIT_DEDUCTED
	// THEN: close fails InvalidState and the message names bob

	g := newCreditGame(t)
	alloc := map[bankroll.Token]bankroll.Distribution{
		g.alice: {Cash: dec("150"), CreditFrom: []bankroll.CreditShare{{From: g.bob, Amount: dec("100")}}},
	}
	_, err := g.engine.Override(g.ctx, g.session, alloc)
	require.NoError(t, err)
	_, err = g.engine.Confirm(g.ctx, g.session, g.alice)
	require.NoError(t, err)

	_, err = g.engine.Close(g.ctx, g.session)

	require.Error(t, err)
	assert.True(t, errors.Is(err, bankroll.ErrInvalidState))
	assert.Contains(t, err.Error(), "bob")
	assert.NotContains(t, err.Error(), "alice")

	s, err := g.engine.GetSession(g.ctx, g.session)
	require.NoError(t, err)
	assert.Equal(t, bankroll.SessionSettling, s.Status)
}

func TestClose_RequiresSettling(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Close(f.ctx, f.session)
	assert.True(t, errors.Is(err, bankroll.ErrInvalidState), "got %v", err)
}

// =============================================================================
// ACTIONS
// =============================================================================

func TestActions_DebtorPaysCreditor(t *testing.T) {
	g := newCreditGame(t)
	_, err := g.engine.Override(g.ctx, g.session, g.allocation())
	require.NoError(t, err)

	aliceActions, err := g.engine.Actions(g.ctx, g.session, g.alice)
	require.NoError(t, err)
	require.Len(t, aliceActions, 2)
	assert.Equal(t, bankroll.ActionReceiveCash, aliceActions[0].Kind)
	requireDec(t, "150", aliceActions[0].Amount)
	assert.Equal(t, bankroll.ActionReceiveCredit, aliceActions[1].Kind)
	assert.Equal(t, g.bob, aliceActions[1].Counterparty)

	bobActions, err := g.engine.Actions(g.ctx, g.session, g.bob)
	require.NoError(t, err)
	require.Len(t, bobActions, 1)
	assert.Equal(t, bankroll.ActionPayCredit, bobActions[0].Kind)
	requireDec(t, "100", bobActions[0].Amount)
	assert.Equal(t, g.alice, bobActions[0].Counterparty)

	managerActions, err := g.engine.Actions(g.ctx, g.session, g.manager)
	require.NoError(t, err)
	require.Len(t, managerActions, 1)
	requireDec(t, "50", managerActions[0].Amount)
}

func TestActions_EmptyBeforeDistribution(t *testing.T) {
	f := newFixture(t)
	alice := f.join("alice")

	actions, err := f.engine.Actions(f.ctx, f.session, alice)
	require.NoError(t, err)
	assert.NotNil(t, actions)
	assert.Empty(t, actions)
}
