/*
scenarios_test.go - Unit tests for demo scenarios

PURPOSE:
	Tests that each scenario sets up the expected session:
	- Participants are seated
	- Buy-ins are approved and booked
	- Settling scenarios have frozen buy-ins and submitted counts
*/
package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/bankroll/bankroll"
)

func TestScenario_CashGame(t *testing.T) {
	// GIVEN: Cash game scenario
	// WHEN: Loading the scenario
	// THEN: Three players with 300 cash in the pool and nothing pending

	ts := newTestServer(t)
	ctx := context.Background()

	table, err := ts.handler.loadCashGameScenario(ctx)
	require.NoError(t, err)
	assert.Len(t, table.seats, 3)

	s, err := ts.handler.Engine.GetSession(ctx, table.session)
	require.NoError(t, err)
	assert.Equal(t, bankroll.SessionAccepting, s.Status)
	assert.Equal(t, "300", s.Bank.CashPool.String())
	assert.True(t, s.Bank.CreditIssued.IsZero())

	pending, err := ts.handler.Engine.ListRequests(ctx, table.session, true)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestScenario_CreditGame(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	table, err := ts.handler.loadCreditGameScenario(ctx)
	require.NoError(t, err)

	s, err := ts.handler.Engine.GetSession(ctx, table.session)
	require.NoError(t, err)
	assert.Equal(t, "200", s.Bank.CashPool.String())
	assert.Equal(t, "100", s.Bank.CreditIssued.String())
	assert.Equal(t, "300", s.Bank.ChipsInPlay.String())

	bob, err := ts.handler.Engine.GetParticipant(ctx, table.session, table.seats["Bob"].Token)
	require.NoError(t, err)
	assert.Equal(t, "100", bob.OutstandingCredit.String())
}

func TestScenario_Settling(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()

	table, err := ts.handler.loadSettlingScenario(ctx)
	require.NoError(t, err)

	ps, err := ts.handler.Engine.ListParticipants(ctx, table.session)
	require.NoError(t, err)
	require.Len(t, ps, 3)
	for _, p := range ps {
		assert.Equal(t, bankroll.CheckoutSubmitted, p.Checkout, p.Name)
		assert.NotNil(t, p.FrozenBuyIn, p.Name)
	}

	sum, err := ts.handler.Engine.Summary(ctx, table.session)
	require.NoError(t, err)
	assert.Equal(t, bankroll.PhaseCollecting, sum.Phase)
}

func TestScenario_LoadViaAPI(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do("GET", "/api/scenarios", "", nil)
	requireStatus(t, http.StatusOK, rec)
	assert.Len(t, decodeAs[[]ScenarioDTO](t, rec), len(scenarios))

	for _, sc := range scenarios {
		t.Run(sc.ID, func(t *testing.T) {
			rec := ts.do("POST", "/api/scenarios/load", "", LoadScenarioRequest{ScenarioID: sc.ID})
			requireStatus(t, http.StatusOK, rec)
			resp := decodeAs[ScenarioResponse](t, rec)
			assert.Equal(t, sc.ID, resp.Scenario.ID)
			require.Contains(t, resp.Tokens, "Host")

			c, err := ts.handler.Auth.Parse(resp.Tokens["Host"])
			require.NoError(t, err)
			assert.True(t, c.Manager)
			assert.Equal(t, bankroll.SessionID(resp.Session.ID), c.Session)
		})
	}

	rec = ts.do("POST", "/api/scenarios/load", "", LoadScenarioRequest{ScenarioID: "tournament"})
	requireStatus(t, http.StatusBadRequest, rec)
}
