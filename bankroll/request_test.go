package bankroll_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/bankroll/bankroll"
)

// =============================================================================
// CREATE
// =============================================================================

func TestCreateRequest_Validation(t *testing.T) {
	f := newFixture(t)
	alice := f.join("alice")

	tests := []struct {
		name string
		in   bankroll.CreateRequestInput
		want error
	}{
		{
			name: "zero amount",
			in:   bankroll.CreateRequestInput{SessionID: f.session, Beneficiary: alice, Type: bankroll.RequestCash, Amount: dec("0")},
			want: bankroll.ErrInvalidAmount,
		},
		{
			name: "negative amount",
			in:   bankroll.CreateRequestInput{SessionID: f.session, Beneficiary: alice, Type: bankroll.RequestCash, Amount: dec("-5")},
			want: bankroll.ErrInvalidAmount,
		},
		{
			name: "unknown type",
			in:   bankroll.CreateRequestInput{SessionID: f.session, Beneficiary: alice, Type: "chips", Amount: dec("10")},
			want: bankroll.ErrInvalidAmount,
		},
		{
			name: "unknown beneficiary",
			in:   bankroll.CreateRequestInput{SessionID: f.session, Beneficiary: "ghost", Type: bankroll.RequestCash, Amount: dec("10")},
			want: bankroll.ErrNotFound,
		},
		{
			name: "unknown session",
			in:   bankroll.CreateRequestInput{SessionID: "nope", Beneficiary: alice, Type: bankroll.RequestCash, Amount: dec("10")},
			want: bankroll.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.CreateRequest(f.ctx, tt.in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestCreateRequest_OnBehalfOfNotifiesBeneficiary(t *testing.T) {
	// GIVEN: the manager asks for chips for alice
	// THEN: alice is told, the request is pending with the manager as submitter

	f := newFixture(t)
	alice := f.join("alice")

	r, err := f.engine.CreateRequest(f.ctx, bankroll.CreateRequestInput{
		SessionID:   f.session,
		Beneficiary: alice,
		Submitter:   f.manager,
		Type:        bankroll.RequestCredit,
		Amount:      dec("40"),
	})
	require.NoError(t, err)

	assert.Equal(t, bankroll.RequestPending, r.Status)
	assert.True(t, r.OnBehalfOf())
	assert.Len(t, f.notes.to(alice, bankroll.NotifyRequestCreated), 1)
}

func TestCreateRequest_RejectedOnceSettling(t *testing.T) {
	f := newFixture(t)
	alice := f.join("alice")
	f.settle()

	_, err := f.engine.CreateRequest(f.ctx, bankroll.CreateRequestInput{
		SessionID: f.session, Beneficiary: alice, Type: bankroll.RequestCash, Amount: dec("10"),
	})
	assert.True(t, errors.Is(err, bankroll.ErrInvalidState), "got %v", err)
}

// =============================================================================
// RESOLVE
// =============================================================================

func TestApprove_BooksLedger(t *testing.T) {
	// GIVEN: alice buys 100 cash, bob 50 credit
	// THEN: issuance is balanced and only cash reaches the cash pool

	f := newFixture(t)
	alice := f.join("alice")
	bob := f.join("bob")

	f.buy(alice, bankroll.RequestCash, "100")
	f.buy(bob, bankroll.RequestCredit, "50")

	b := f.bank()
	requireDec(t, "100", b.CashIn)
	requireDec(t, "50", b.CreditIssued)
	requireDec(t, "150", b.ChipsIssued)
	requireDec(t, "150", b.ChipsInPlay)
	requireDec(t, "100", b.CashPool)
	requireDec(t, "100", b.CashBalance)
	requireDec(t, "0", b.CreditPool)
	assert.True(t, b.Balanced())

	requireDec(t, "50", f.participant(bob).OutstandingCredit)
	requireDec(t, "0", f.participant(alice).OutstandingCredit)
	assert.Len(t, f.notes.to(alice, bankroll.NotifyRequestApproved), 1)
}

func TestResolve_TerminalRequestsStayTerminal(t *testing.T) {
	// GIVEN: an approved request
	// WHEN: it is approved, declined or edited again
	// THEN: every call fails InvalidState and the ledger is booked once

	f := newFixture(t)
	alice := f.join("alice")
	r := f.buy(alice, bankroll.RequestCash, "100")

	_, err := f.engine.Approve(f.ctx, r.ID, f.manager)
	assert.True(t, errors.Is(err, bankroll.ErrInvalidState), "approve again: %v", err)
	_, err = f.engine.Decline(f.ctx, r.ID, f.manager)
	assert.True(t, errors.Is(err, bankroll.ErrInvalidState), "decline: %v", err)
	_, err = f.engine.EditAndApprove(f.ctx, r.ID, dec("20"), nil, f.manager)
	assert.True(t, errors.Is(err, bankroll.ErrInvalidState), "edit: %v", err)

	requireDec(t, "100", f.bank().CashIn)
}

func TestDecline_NoLedgerEffect(t *testing.T) {
	f := newFixture(t)
	alice := f.join("alice")

	r, err := f.engine.CreateRequest(f.ctx, bankroll.CreateRequestInput{
		SessionID: f.session, Beneficiary: alice, Type: bankroll.RequestCash, Amount: dec("100"),
	})
	require.NoError(t, err)

	r, err = f.engine.Decline(f.ctx, r.ID, f.manager)
	require.NoError(t, err)

	assert.Equal(t, bankroll.RequestDeclined, r.Status)
	requireDec(t, "0", f.bank().ChipsIssued)
	assert.Len(t, f.notes.to(alice, bankroll.NotifyRequestDeclined), 1)
}

func TestEditAndApprove_KeepsOriginalAmount(t *testing.T) {
	// GIVEN: alice asks for 100 cash
	// WHEN: the manager edits it to 80 credit
	// THEN: the ledger books 80 credit and the request still shows 100 cash

	f := newFixture(t)
	alice := f.join("alice")

	r, err := f.engine.CreateRequest(f.ctx, bankroll.CreateRequestInput{
		SessionID: f.session, Beneficiary: alice, Type: bankroll.RequestCash, Amount: dec("100"),
	})
	require.NoError(t, err)

	credit := bankroll.RequestCredit
	r, err = f.engine.EditAndApprove(f.ctx, r.ID, dec("80"), &credit, f.manager)
	require.NoError(t, err)

	assert.Equal(t, bankroll.RequestEdited, r.Status)
	requireDec(t, "100", r.Amount)
	assert.Equal(t, bankroll.RequestCash, r.Type)
	requireDec(t, "80", r.EffectiveAmount())
	assert.Equal(t, bankroll.RequestCredit, r.EffectiveType())

	b := f.bank()
	requireDec(t, "0", b.CashIn)
	requireDec(t, "80", b.CreditIssued)
	requireDec(t, "0", b.CashPool)
	requireDec(t, "80", f.participant(alice).OutstandingCredit)
}

func TestApprove_ConcurrentExactlyOneWins(t *testing.T) {
	// GIVEN: one pending request and several managers racing to approve it
	// THEN: exactly one approval succeeds and the ledger is booked once

	f := newFixture(t)
	alice := f.join("alice")
	r, err := f.engine.CreateRequest(f.ctx, bankroll.CreateRequestInput{
		SessionID: f.session, Beneficiary: alice, Type: bankroll.RequestCash, Amount: dec("25"),
	})
	require.NoError(t, err)

	const racers = 16
	var wg sync.WaitGroup
	errs := make(chan error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.Approve(f.ctx, r.ID, f.manager)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.True(t, errors.Is(err, bankroll.ErrInvalidState), "loser error: %v", err)
	}
	assert.Equal(t, 1, wins)
	requireDec(t, "25", f.bank().CashIn)
}

func TestListRequests_PendingOnly(t *testing.T) {
	f := newFixture(t)
	alice := f.join("alice")
	f.buy(alice, bankroll.RequestCash, "10")
	_, err := f.engine.CreateRequest(f.ctx, bankroll.CreateRequestInput{
		SessionID: f.session, Beneficiary: alice, Type: bankroll.RequestCash, Amount: dec("20"),
	})
	require.NoError(t, err)

	all, err := f.engine.ListRequests(f.ctx, f.session, false)
	require.NoError(t, err)
	pending, err := f.engine.ListRequests(f.ctx, f.session, true)
	require.NoError(t, err)

	assert.Len(t, all, 2)
	require.Len(t, pending, 1)
	requireDec(t, "20", pending[0].Amount)
}

func TestCreateRequest_RejectedAfterBuyInFrozen(t *testing.T) {
	// GIVEN: alice began checkout mid-session and was paid on the fast path
	// WHEN: a credit buy-in is requested for her
	// THEN: the request is refused and the bank is untouched

	f := newFixture(t)
	alice := f.join("alice")
	f.buy(alice, bankroll.RequestCash, "100")
	_, err := f.engine.BeginCheckout(f.ctx, f.session, alice)
	require.NoError(t, err)

	_, err = f.engine.CreateRequest(f.ctx, bankroll.CreateRequestInput{
		SessionID: f.session, Beneficiary: alice, Submitter: f.manager, Type: bankroll.RequestCredit, Amount: dec("500"),
	})
	assert.True(t, errors.Is(err, bankroll.ErrInvalidState), "pending: %v", err)

	f.count(alice, "100", noPref())
	_, err = f.engine.CreateRequest(f.ctx, bankroll.CreateRequestInput{
		SessionID: f.session, Beneficiary: alice, Submitter: f.manager, Type: bankroll.RequestCredit, Amount: dec("500"),
	})
	assert.True(t, errors.Is(err, bankroll.ErrInvalidState), "done: %v", err)

	bank := f.bank()
	requireDec(t, "0", bank.ChipsInPlay)
	requireDec(t, "0", bank.CreditIssued)
	requireDec(t, "0", f.participant(alice).OutstandingCredit)
}

func TestApprove_RejectedAfterBuyInFrozen(t *testing.T) {
	// GIVEN: a pending request whose beneficiary is frozen before it is resolved
	// WHEN: the manager approves or edits it
	// THEN: both fail without booking; declining still works

	f := newFixture(t)
	alice := f.join("alice")
	r, err := f.engine.CreateRequest(f.ctx, bankroll.CreateRequestInput{
		SessionID: f.session, Beneficiary: alice, Type: bankroll.RequestCredit, Amount: dec("50"),
	})
	require.NoError(t, err)
	_, err = f.store.UpdateParticipant(f.ctx, f.session, alice, func(p *bankroll.Participant) error {
		p.Checkout = bankroll.CheckoutPending
		return nil
	})
	require.NoError(t, err)

	_, err = f.engine.Approve(f.ctx, r.ID, f.manager)
	assert.True(t, errors.Is(err, bankroll.ErrInvalidState), "approve: %v", err)
	_, err = f.engine.EditAndApprove(f.ctx, r.ID, dec("20"), nil, f.manager)
	assert.True(t, errors.Is(err, bankroll.ErrInvalidState), "edit: %v", err)
	requireDec(t, "0", f.bank().CreditIssued)

	declined, err := f.engine.Decline(f.ctx, r.ID, f.manager)
	require.NoError(t, err)
	assert.Equal(t, bankroll.RequestDeclined, declined.Status)
}
