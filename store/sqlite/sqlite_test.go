package sqlite_test

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/bankroll/bankroll"
	"github.com/warp/bankroll/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// =============================================================================
// DOCUMENT ROUND TRIPS
// =============================================================================

func TestStore_SessionRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	bank := bankroll.NewBank()
	bank.CashPool = d("125.50")
	require.NoError(t, store.CreateSession(ctx, bankroll.Session{
		ID: "s1", Name: "friday", Status: bankroll.SessionAccepting, Bank: bank,
	}))

	got, err := store.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "friday", got.Name)
	assert.True(t, got.Bank.CashPool.Equal(d("125.5")))

	_, err = store.GetSession(ctx, "missing")
	assert.True(t, bankroll.IsNotFound(err))
}

func TestStore_UpdateRollsBackOnError(t *testing.T) {
	// GIVEN: a pending request
	// WHEN: the update function mutates and then fails
	// THEN: the stored request is unchanged

	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreateSession(ctx, bankroll.Session{ID: "s1", Status: bankroll.SessionAccepting}))
	require.NoError(t, store.CreateRequest(ctx, bankroll.Request{
		ID: "r1", SessionID: "s1", Beneficiary: "p1", Type: bankroll.RequestCash,
		Amount: d("10"), Status: bankroll.RequestPending,
	}))

	boom := errors.New("boom")
	_, err := store.UpdateRequest(ctx, "r1", func(r *bankroll.Request) error {
		r.Status = bankroll.RequestApproved
		return boom
	})
	assert.ErrorIs(t, err, boom)

	r, err := store.GetRequest(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, bankroll.RequestPending, r.Status)
}

func TestStore_ParticipantRequiresSession(t *testing.T) {
	store := newTestStore(t)

	err := store.CreateParticipant(context.Background(), bankroll.Participant{SessionID: "nope", Token: "t1", Name: "alice"})
	assert.True(t, bankroll.IsNotFound(err), "got %v", err)
}

func TestStore_ListsInInsertionOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreateSession(ctx, bankroll.Session{ID: "s1"}))

	for _, name := range []string{"zed", "alice", "mo"} {
		require.NoError(t, store.CreateParticipant(ctx, bankroll.Participant{
			SessionID: "s1", Token: bankroll.Token("t-" + name), Name: name,
		}))
	}

	ps, err := store.ListParticipants(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, ps, 3)
	assert.Equal(t, "zed", ps[0].Name)
	assert.Equal(t, "mo", ps[2].Name)

	empty, err := store.ListRequests(ctx, "s1")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

// =============================================================================
// ENGINE ON SQLITE
// =============================================================================

func TestStore_CashGameEndToEnd(t *testing.T) {
	// GIVEN: a cash-only game on the SQLite store
	// WHEN: both players settle on the fast path
	// THEN: the pool empties and the session closes

	store := newTestStore(t)
	ctx := context.Background()
	engine := bankroll.NewEngine(store, nil)

	s, manager, err := engine.CreateSession(ctx, "cash game", "host")
	require.NoError(t, err)
	guest, err := engine.Join(ctx, s.ID, "guest")
	require.NoError(t, err)

	for _, tok := range []bankroll.Token{manager.Token, guest.Token} {
		r, err := engine.CreateRequest(ctx, bankroll.CreateRequestInput{
			SessionID: s.ID, Beneficiary: tok, Type: bankroll.RequestCash, Amount: d("50"),
		})
		require.NoError(t, err)
		_, err = engine.Approve(ctx, r.ID, manager.Token)
		require.NoError(t, err)
	}

	_, err = engine.StartSettling(ctx, s.ID, manager.Token)
	require.NoError(t, err)

	counts := map[bankroll.Token]string{manager.Token: "30", guest.Token: "70"}
	for tok, c := range counts {
		_, err := engine.SubmitCount(ctx, s.ID, tok, d(c), bankroll.Split{})
		require.NoError(t, err)
		p, err := engine.ValidateCount(ctx, s.ID, tok)
		require.NoError(t, err)
		assert.Equal(t, bankroll.CheckoutDone, p.Checkout)
	}

	got, err := engine.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.True(t, got.Bank.CashPool.IsZero(), "cash pool %s", got.Bank.CashPool)
	assert.True(t, got.Bank.ChipsInPlay.IsZero(), "chips in play %s", got.Bank.ChipsInPlay)

	_, err = engine.Close(ctx, s.ID)
	require.NoError(t, err)
}

// =============================================================================
// SQLMOCK
// =============================================================================

func TestStore_UpdateRequest_GuardFailureRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := sqlite.NewWithDB(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT doc_json FROM requests WHERE id = ?").
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{"doc_json"}).AddRow(`{"ID":"r1","Status":"approved"}`))
	mock.ExpectRollback()

	_, err = store.UpdateRequest(context.Background(), "r1", func(r *bankroll.Request) error {
		if r.Status != bankroll.RequestPending {
			return bankroll.ErrInvalidState
		}
		return nil
	})

	assert.ErrorIs(t, err, bankroll.ErrInvalidState)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_UpdateRequest_Commits(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := sqlite.NewWithDB(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT doc_json FROM requests WHERE id = ?").
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{"doc_json"}).AddRow(`{"ID":"r1","Status":"pending"}`))
	mock.ExpectExec("UPDATE requests SET status = ?").
		WithArgs("declined", sqlmock.AnyArg(), "r1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	r, err := store.UpdateRequest(context.Background(), "r1", func(r *bankroll.Request) error {
		r.Status = bankroll.RequestDeclined
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, bankroll.RequestDeclined, r.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetParticipant_NoRowsIsNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := sqlite.NewWithDB(db)

	mock.ExpectQuery("SELECT doc_json FROM participants").
		WillReturnRows(sqlmock.NewRows([]string{"doc_json"}))

	_, err = store.GetParticipant(context.Background(), "s1", "ghost")

	assert.True(t, bankroll.IsNotFound(err), "got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
