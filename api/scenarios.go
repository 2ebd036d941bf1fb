/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built sessions for demos and manual testing. Each scenario
	creates a fresh session with seated participants and approved buy-ins,
	and returns a bearer token for every participant so a client can act
	as any of them.

AVAILABLE SCENARIOS:

	cash-game:     Three players, cash buy-ins only, still accepting
	credit-game:   One player on credit, still accepting
	settling:      credit-game with every count submitted, waiting on the manager

HOW SCENARIOS WORK:
 1. Create session with a manager
 2. Seat the other players
 3. Create and approve buy-in requests as the manager
 4. Optionally start settling and submit counts

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "credit-game"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx)
 3. Add case to LoadScenario handler

NOTE:

	Scenarios never touch existing sessions; each load creates a new one.

SEE ALSO:
  - handlers.go: Handler plumbing
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/warp/bankroll/bankroll"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "cash-game",
		Name:        "Cash Game",
		Description: "Three players buy in with cash; the session is still running",
	},
	{
		ID:          "credit-game",
		Name:        "Credit Game",
		Description: "Bob plays on 100 credit while the others pay cash",
	},
	{
		ID:          "settling",
		Name:        "Settling",
		Description: "Credit game with all counts submitted, waiting on the manager to validate",
	},
}

// ListScenarios returns available scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario creates a new session from a predefined scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}

	var def *ScenarioDTO
	for i := range scenarios {
		if scenarios[i].ID == req.ScenarioID {
			def = &scenarios[i]
		}
	}
	if def == nil {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	ctx := r.Context()
	var (
		table *seating
		err   error
	)
	switch req.ScenarioID {
	case "cash-game":
		table, err = h.loadCashGameScenario(ctx)
	case "credit-game":
		table, err = h.loadCreditGameScenario(ctx)
	case "settling":
		table, err = h.loadSettlingScenario(ctx)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	s, err := h.Engine.GetSession(ctx, table.session)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	tokens := make(map[string]string, len(table.seats))
	for name, p := range table.seats {
		tok, err := h.Auth.Issue(p)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to issue token", err)
			return
		}
		tokens[name] = tok
	}

	writeJSON(w, http.StatusOK, ScenarioResponse{Scenario: *def, Session: toSessionDTO(s), Tokens: tokens})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

type seating struct {
	session bankroll.SessionID
	manager bankroll.Token
	seats   map[string]*bankroll.Participant
}

func (h *Handler) newTable(ctx context.Context, name, managerName string, players ...string) (*seating, error) {
	s, manager, err := h.Engine.CreateSession(ctx, name, managerName)
	if err != nil {
		return nil, err
	}
	t := &seating{
		session: s.ID,
		manager: manager.Token,
		seats:   map[string]*bankroll.Participant{managerName: manager},
	}
	for _, player := range players {
		p, err := h.Engine.Join(ctx, s.ID, player)
		if err != nil {
			return nil, err
		}
		t.seats[player] = p
	}
	return t, nil
}

// buyIn creates a request for a seated player and approves it as the manager.
func (h *Handler) buyIn(ctx context.Context, t *seating, player string, typ bankroll.RequestType, amount int64) error {
	p := t.seats[player]
	req, err := h.Engine.CreateRequest(ctx, bankroll.CreateRequestInput{
		SessionID:   t.session,
		Beneficiary: p.Token,
		Submitter:   p.Token,
		Type:        typ,
		Amount:      decimal.NewFromInt(amount),
	})
	if err != nil {
		return fmt.Errorf("buy-in for %s: %w", player, err)
	}
	if _, err := h.Engine.Approve(ctx, req.ID, t.manager); err != nil {
		return fmt.Errorf("approve buy-in for %s: %w", player, err)
	}
	return nil
}

func (h *Handler) loadCashGameScenario(ctx context.Context) (*seating, error) {
	t, err := h.newTable(ctx, "Cash Game", "Host", "Alice", "Bob")
	if err != nil {
		return nil, err
	}
	// Bob rebuys once
	for _, b := range []struct {
		player string
		amount int64
	}{{"Host", 100}, {"Alice", 100}, {"Bob", 50}, {"Bob", 50}} {
		if err := h.buyIn(ctx, t, b.player, bankroll.RequestCash, b.amount); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (h *Handler) loadCreditGameScenario(ctx context.Context) (*seating, error) {
	t, err := h.newTable(ctx, "Credit Game", "Host", "Alice", "Bob")
	if err != nil {
		return nil, err
	}
	if err := h.buyIn(ctx, t, "Host", bankroll.RequestCash, 100); err != nil {
		return nil, err
	}
	if err := h.buyIn(ctx, t, "Alice", bankroll.RequestCash, 100); err != nil {
		return nil, err
	}
	if err := h.buyIn(ctx, t, "Bob", bankroll.RequestCredit, 100); err != nil {
		return nil, err
	}
	return t, nil
}

// loadSettlingScenario ends the credit game with Alice up 150 and Bob
// busted on his credit. Alice asks for 150 cash and 100 of Bob's debt.
func (h *Handler) loadSettlingScenario(ctx context.Context) (*seating, error) {
	t, err := h.loadCreditGameScenario(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := h.Engine.StartSettling(ctx, t.session, t.manager); err != nil {
		return nil, err
	}

	counts := []struct {
		player string
		count  int64
		pref   bankroll.Split
	}{
		{"Host", 50, bankroll.Split{}},
		{"Alice", 250, bankroll.Split{Cash: decimal.NewFromInt(150), Credit: decimal.NewFromInt(100)}},
		{"Bob", 0, bankroll.Split{}},
	}
	for _, c := range counts {
		tok := t.seats[c.player].Token
		if _, err := h.Engine.SubmitCount(ctx, t.session, tok, decimal.NewFromInt(c.count), c.pref); err != nil {
			return nil, fmt.Errorf("count for %s: %w", c.player, err)
		}
	}
	return t, nil
}
