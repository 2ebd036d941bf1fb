/*
handlers.go - HTTP API handlers for the bankroll engine

PURPOSE:
  Exposes the settlement engine via REST API. Handles HTTP request/response,
  JSON serialization and caller identity, and delegates to bankroll.Engine.

ENDPOINTS:
  Sessions:
    POST   /api/sessions                      Create session (returns manager token)
    GET    /api/sessions                      List sessions
    POST   /api/sessions/{id}/join            Join (returns participant token)
    GET    /api/sessions/{id}/qr              PNG join code
    GET    /api/sessions/{id}                 Session and bank
    GET    /api/sessions/{id}/participants    Participants in join order
    GET    /api/sessions/{id}/summary         Settlement progress
    POST   /api/sessions/{id}/settle          Freeze buy-ins (manager)
    POST   /api/sessions/{id}/close           Close (manager)

  Buy-in requests:
    POST   /api/sessions/{id}/requests        Ask for chips
    GET    /api/sessions/{id}/requests        List (?status=pending)
    POST   /api/requests/{rid}/approve        (manager)
    POST   /api/requests/{rid}/decline        (manager)
    POST   /api/requests/{rid}/edit           Edit and approve (manager)

  Checkout:
    POST   /api/sessions/{id}/checkout        Begin own checkout mid-session
    POST   /api/sessions/{id}/count           Submit own chip count
    POST   /api/sessions/{id}/preference      Ready for distribution
    POST   /api/sessions/{id}/participants/{token}/validate|reject|override (manager)

  Distribution:
    GET    /api/sessions/{id}/distribution/suggest
    POST   /api/sessions/{id}/distribution    Override allocations (manager)
    POST   /api/sessions/{id}/participants/{token}/confirm (manager)
    GET    /api/sessions/{id}/actions         Own obligations

  Legacy and maintenance:
    GET    /api/sessions/{id}/order
    POST   /api/sessions/{id}/checkout-next   (manager)
    POST   /api/sessions/{id}/reconcile       Recompute pools (manager)
    GET    /api/sessions/{id}/notifications   Own inbox

ERROR HANDLING:
  Engine errors map to status codes in writeEngineError:
  - 400: Validation errors, invalid amount
  - 401/403: Missing token, wrong session, not the manager
  - 404: Session, participant or request not found
  - 409: Transition not legal from the current state
  - 422: Distribution override breaks conservation
  - 423: Participant input locked by the manager
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - auth.go: Bearer tokens
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/warp/bankroll/bankroll"
	"github.com/warp/bankroll/notify"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	Engine  *bankroll.Engine
	Auth    *Auth
	Inbox   notify.Inbox // nil disables GET notifications
	BaseURL string

	validate *validator.Validate
}

// NewHandler creates a new handler.
func NewHandler(engine *bankroll.Engine, auth *Auth, inbox notify.Inbox, baseURL string) *Handler {
	v := validator.New()
	// Report JSON field names in validation details
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{
		Engine:   engine,
		Auth:     auth,
		Inbox:    inbox,
		BaseURL:  strings.TrimRight(baseURL, "/"),
		validate: v,
	}
}

func (h *Handler) joinURL(id bankroll.SessionID) string {
	return fmt.Sprintf("%s/join/%s", h.BaseURL, id)
}

// =============================================================================
// SESSION ENDPOINTS
// =============================================================================

// CreateSession starts a session and makes the caller its manager.
// POST /api/sessions
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if !h.decode(w, r, &req) {
		return
	}

	s, manager, err := h.Engine.CreateSession(r.Context(), req.Name, req.ManagerName)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	h.writeAuth(w, http.StatusCreated, s, manager)
}

// ListSessions returns all sessions.
// GET /api/sessions
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.Engine.ListSessions(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	dtos := make([]SessionDTO, len(sessions))
	for i := range sessions {
		dtos[i] = toSessionDTO(&sessions[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Join adds a participant to an accepting session.
// POST /api/sessions/{id}/join
func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	var req JoinRequest
	if !h.decode(w, r, &req) {
		return
	}
	ctx := r.Context()
	id := sessionParam(r)

	p, err := h.Engine.Join(ctx, id, req.Name)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	s, err := h.Engine.GetSession(ctx, id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	h.writeAuth(w, http.StatusCreated, s, p)
}

func (h *Handler) writeAuth(w http.ResponseWriter, status int, s *bankroll.Session, p *bankroll.Participant) {
	token, err := h.Auth.Issue(p)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue token", err)
		return
	}
	writeJSON(w, status, AuthResponse{
		Session:     toSessionDTO(s),
		Participant: toParticipantDTO(p),
		Token:       token,
		JoinURL:     h.joinURL(s.ID),
	})
}

// GetSession returns the session and its bank.
// GET /api/sessions/{id}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.Engine.GetSession(r.Context(), sessionParam(r))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(s))
}

// ListParticipants returns everyone in join order.
// GET /api/sessions/{id}/participants
func (h *Handler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	ps, err := h.Engine.ListParticipants(r.Context(), sessionParam(r))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toParticipantDTOs(ps))
}

// GetSummary returns settlement progress and pool health.
// GET /api/sessions/{id}/summary
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.Engine.Summary(r.Context(), sessionParam(r))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SummaryDTO{
		Session:         toSessionDTO(&sum.Session),
		Phase:           string(sum.Phase),
		Participants:    sum.Participants,
		Done:            sum.Done,
		PendingRequests: sum.PendingRequests,
		Balanced:        sum.Balanced,
		Derived:         PoolsDTO{CashPool: sum.Derived.CashPool, CreditPool: sum.Derived.CreditPool},
		AsOf:            sum.AsOf,
	})
}

// StartSettling freezes every buy-in and declines pending requests.
// POST /api/sessions/{id}/settle
func (h *Handler) StartSettling(w http.ResponseWriter, r *http.Request) {
	s, err := h.Engine.StartSettling(r.Context(), sessionParam(r), caller(r).Token)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(s))
}

// CloseSession ends a fully settled session.
// POST /api/sessions/{id}/close
func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.Engine.Close(r.Context(), sessionParam(r))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(s))
}

// =============================================================================
// REQUEST ENDPOINTS
// =============================================================================

// CreateRequest asks for chips, for the caller or on behalf of someone else.
// POST /api/sessions/{id}/requests
func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	var req CreateBuyInRequest
	if !h.decode(w, r, &req) {
		return
	}
	amount, ok := parseAmount(w, "amount", req.Amount)
	if !ok {
		return
	}

	c := caller(r)
	beneficiary := c.Token
	if req.Beneficiary != "" {
		beneficiary = bankroll.Token(req.Beneficiary)
	}

	created, err := h.Engine.CreateRequest(r.Context(), bankroll.CreateRequestInput{
		SessionID:   c.Session,
		Beneficiary: beneficiary,
		Submitter:   c.Token,
		Type:        bankroll.RequestType(req.Type),
		Amount:      amount,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestDTO(created))
}

// ListRequests returns the session's requests, oldest first.
// GET /api/sessions/{id}/requests?status=pending
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	pendingOnly := r.URL.Query().Get("status") == string(bankroll.RequestPending)

	reqs, err := h.Engine.ListRequests(r.Context(), sessionParam(r), pendingOnly)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	dtos := make([]RequestDTO, len(reqs))
	for i := range reqs {
		dtos[i] = toRequestDTO(&reqs[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// requestInCallerSession loads {rid} and checks it belongs to the caller's
// session. Writes the error response and returns false otherwise.
func (h *Handler) requestInCallerSession(w http.ResponseWriter, r *http.Request) (bankroll.RequestID, bool) {
	id := bankroll.RequestID(chi.URLParam(r, "rid"))
	req, err := h.Engine.GetRequest(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return "", false
	}
	if req.SessionID != caller(r).Session {
		writeError(w, http.StatusForbidden, "Request belongs to another session", nil)
		return "", false
	}
	return id, true
}

// ApproveRequest books a pending request into the ledger.
// POST /api/requests/{rid}/approve
func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requestInCallerSession(w, r)
	if !ok {
		return
	}
	req, err := h.Engine.Approve(r.Context(), id, caller(r).Token)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

// DeclineRequest
// POST /api/requests/{rid}/decline
func (h *Handler) DeclineRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := h.requestInCallerSession(w, r)
	if !ok {
		return
	}
	req, err := h.Engine.Decline(r.Context(), id, caller(r).Token)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

// EditRequest approves a pending request with a different amount or type.
// POST /api/requests/{rid}/edit
func (h *Handler) EditRequest(w http.ResponseWriter, r *http.Request) {
	var body EditRequestRequest
	if !h.decode(w, r, &body) {
		return
	}
	amount, ok := parseAmount(w, "amount", body.Amount)
	if !ok {
		return
	}
	id, ok := h.requestInCallerSession(w, r)
	if !ok {
		return
	}

	var typ *bankroll.RequestType
	if body.Type != "" {
		t := bankroll.RequestType(body.Type)
		typ = &t
	}
	req, err := h.Engine.EditAndApprove(r.Context(), id, amount, typ, caller(r).Token)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

// =============================================================================
// CHECKOUT ENDPOINTS
// =============================================================================

// BeginCheckout freezes the caller's buy-in while the session is running.
// POST /api/sessions/{id}/checkout
func (h *Handler) BeginCheckout(w http.ResponseWriter, r *http.Request) {
	c := caller(r)
	p, err := h.Engine.BeginCheckout(r.Context(), c.Session, c.Token)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toParticipantDTO(p))
}

// SubmitCount reports the caller's chip count and payout preference.
// POST /api/sessions/{id}/count
func (h *Handler) SubmitCount(w http.ResponseWriter, r *http.Request) {
	var req SubmitCountRequest
	if !h.decode(w, r, &req) {
		return
	}
	count, ok := parseAmount(w, "count", req.Count)
	if !ok {
		return
	}
	pref, ok := parseSplit(w, req.PreferredCash, req.PreferredCredit)
	if !ok {
		return
	}

	c := caller(r)
	p, err := h.Engine.SubmitCount(r.Context(), c.Session, c.Token, count, pref)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toParticipantDTO(p))
}

// SetPreference moves the caller to awaiting distribution, optionally
// revising the cash/credit split.
// POST /api/sessions/{id}/preference
func (h *Handler) SetPreference(w http.ResponseWriter, r *http.Request) {
	var req PreferenceRequest
	if !h.decode(w, r, &req) {
		return
	}
	var pref *bankroll.Split
	if req.PreferredCash != "" || req.PreferredCredit != "" {
		s, ok := parseSplit(w, req.PreferredCash, req.PreferredCredit)
		if !ok {
			return
		}
		pref = &s
	}

	c := caller(r)
	p, err := h.Engine.AwaitDistribution(r.Context(), c.Session, c.Token, pref)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toParticipantDTO(p))
}

// ValidateCount accepts a submitted count and deducts credit.
// POST /api/sessions/{id}/participants/{token}/validate
func (h *Handler) ValidateCount(w http.ResponseWriter, r *http.Request) {
	p, err := h.Engine.ValidateCount(r.Context(), sessionParam(r), tokenParam(r))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toParticipantDTO(p))
}

// RejectCount sends a submitted count back to the participant.
// POST /api/sessions/{id}/participants/{token}/reject
func (h *Handler) RejectCount(w http.ResponseWriter, r *http.Request) {
	p, err := h.Engine.RejectCount(r.Context(), sessionParam(r), tokenParam(r))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toParticipantDTO(p))
}

// OverrideCount sets the count on the participant's behalf and locks input.
// POST /api/sessions/{id}/participants/{token}/override
func (h *Handler) OverrideCount(w http.ResponseWriter, r *http.Request) {
	var req SubmitCountRequest
	if !h.decode(w, r, &req) {
		return
	}
	count, ok := parseAmount(w, "count", req.Count)
	if !ok {
		return
	}
	var pref *bankroll.Split
	if req.PreferredCash != "" || req.PreferredCredit != "" {
		s, ok := parseSplit(w, req.PreferredCash, req.PreferredCredit)
		if !ok {
			return
		}
		pref = &s
	}

	p, err := h.Engine.OverrideCount(r.Context(), sessionParam(r), tokenParam(r), count, pref)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toParticipantDTO(p))
}

// =============================================================================
// DISTRIBUTION ENDPOINTS
// =============================================================================

// SuggestDistribution proposes allocations for eligible participants.
// GET /api/sessions/{id}/distribution/suggest
func (h *Handler) SuggestDistribution(w http.ResponseWriter, r *http.Request) {
	proposals, err := h.Engine.Suggest(r.Context(), sessionParam(r))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	dtos := make([]ProposalDTO, len(proposals))
	for i, p := range proposals {
		dtos[i] = ProposalDTO{
			Token:        string(p.Token),
			Name:         p.Name,
			Owed:         p.Owed,
			Distribution: toDistributionDTO(p.Distribution),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// OverrideDistribution stores manager-chosen allocations.
// POST /api/sessions/{id}/distribution
func (h *Handler) OverrideDistribution(w http.ResponseWriter, r *http.Request) {
	var req DistributionRequest
	if !h.decode(w, r, &req) {
		return
	}

	alloc := make(map[bankroll.Token]bankroll.Distribution, len(req.Allocations))
	for _, a := range req.Allocations {
		tok := bankroll.Token(a.Token)
		if _, dup := alloc[tok]; dup {
			writeError(w, http.StatusBadRequest, "Duplicate allocation", fmt.Errorf("token %s appears twice", a.Token))
			return
		}
		cash, ok := parseAmount(w, "cash", a.Cash)
		if !ok {
			return
		}
		d := bankroll.Distribution{Cash: cash, CreditFrom: []bankroll.CreditShare{}}
		for _, c := range a.CreditFrom {
			amt, ok := parseAmount(w, "amount", c.Amount)
			if !ok {
				return
			}
			d.CreditFrom = append(d.CreditFrom, bankroll.CreditShare{From: bankroll.Token(c.From), Amount: amt})
		}
		alloc[tok] = d
	}

	ps, err := h.Engine.Override(r.Context(), sessionParam(r), alloc)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toParticipantDTOs(ps))
}

// ConfirmDistribution marks a participant as paid out.
// POST /api/sessions/{id}/participants/{token}/confirm
func (h *Handler) ConfirmDistribution(w http.ResponseWriter, r *http.Request) {
	p, err := h.Engine.Confirm(r.Context(), sessionParam(r), tokenParam(r))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toParticipantDTO(p))
}

// GetActions returns the caller's settlement obligations.
// GET /api/sessions/{id}/actions
func (h *Handler) GetActions(w http.ResponseWriter, r *http.Request) {
	c := caller(r)
	actions, err := h.Engine.Actions(r.Context(), c.Session, c.Token)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	dtos := make([]ActionDTO, len(actions))
	for i, a := range actions {
		dtos[i] = ActionDTO{Kind: string(a.Kind), Amount: a.Amount, Counterparty: string(a.Counterparty)}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// LEGACY CHECKOUT & MAINTENANCE
// =============================================================================

// GetCheckoutOrder lists who checks out next under the legacy flow.
// GET /api/sessions/{id}/order
func (h *Handler) GetCheckoutOrder(w http.ResponseWriter, r *http.Request) {
	ps, err := h.Engine.CheckoutOrder(r.Context(), sessionParam(r))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toParticipantDTOs(ps))
}

// CheckoutNext settles the head of the checkout order in one step.
// POST /api/sessions/{id}/checkout-next
func (h *Handler) CheckoutNext(w http.ResponseWriter, r *http.Request) {
	var req CheckoutNextRequest
	if !h.decode(w, r, &req) {
		return
	}
	count, ok := parseAmount(w, "final_count", req.FinalCount)
	if !ok {
		return
	}
	p, err := h.Engine.CheckoutNext(r.Context(), sessionParam(r), count)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toParticipantDTO(p))
}

// ReconcilePools recomputes the pools from participant and request records.
// POST /api/sessions/{id}/reconcile
func (h *Handler) ReconcilePools(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := sessionParam(r)

	changed, err := h.Engine.ReconcilePools(ctx, id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	s, err := h.Engine.GetSession(ctx, id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ReconcileResponse{Changed: changed, Session: toSessionDTO(s)})
}

// ListNotifications returns the caller's inbox for this session.
// GET /api/sessions/{id}/notifications
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	out := []bankroll.Notification{}
	if h.Inbox == nil {
		writeJSON(w, http.StatusOK, out)
		return
	}

	c := caller(r)
	box, err := h.Inbox.Inbox(r.Context(), c.Token)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read notifications", err)
		return
	}
	for _, n := range box {
		if n.SessionID == c.Session {
			out = append(out, n)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// HELPERS
// =============================================================================

func sessionParam(r *http.Request) bankroll.SessionID {
	return bankroll.SessionID(chi.URLParam(r, "id"))
}

func tokenParam(r *http.Request) bankroll.Token {
	return bankroll.Token(chi.URLParam(r, "token"))
}

// caller is only called behind Authenticate.
func caller(r *http.Request) *Caller {
	c, _ := CallerFrom(r.Context())
	if c == nil {
		return &Caller{}
	}
	return c
}

// decode reads a JSON body into dst and validates it. Writes a 400 and
// returns false on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeValidationError(w, err)
		return false
	}
	return true
}

func parseAmount(w http.ResponseWriter, field string, n json.Number) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(string(n))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "Validation failed",
			Code:    "VALIDATION_FAILED",
			Details: map[string]string{field: fmt.Sprintf("%q is not a decimal", n)},
		})
		return decimal.Zero, false
	}
	return d, true
}

// parseSplit treats an empty side as zero.
func parseSplit(w http.ResponseWriter, cash, credit json.Number) (bankroll.Split, bool) {
	s := bankroll.Split{Cash: decimal.Zero, Credit: decimal.Zero}
	var ok bool
	if cash != "" {
		if s.Cash, ok = parseAmount(w, "preferred_cash", cash); !ok {
			return s, false
		}
	}
	if credit != "" {
		if s.Credit, ok = parseAmount(w, "preferred_credit", credit); !ok {
			return s, false
		}
	}
	return s, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func writeValidationError(w http.ResponseWriter, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}
	details := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		details[fe.Field()] = fmt.Sprintf("Field Validation Failed on '%s' tag", fe.Tag())
	}
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:   "Validation failed",
		Code:    "VALIDATION_FAILED",
		Details: details,
	})
}

// writeEngineError maps engine error kinds to HTTP status codes.
func writeEngineError(w http.ResponseWriter, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	switch {
	case errors.Is(err, bankroll.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, bankroll.ErrInvalidState):
		status, code = http.StatusConflict, "INVALID_STATE"
	case errors.Is(err, bankroll.ErrInvalidAmount):
		status, code = http.StatusBadRequest, "INVALID_AMOUNT"
	case errors.Is(err, bankroll.ErrInvalidAllocation):
		status, code = http.StatusUnprocessableEntity, "INVALID_ALLOCATION"
	case errors.Is(err, bankroll.ErrLocked):
		status, code = http.StatusLocked, "LOCKED"
	}

	resp := ErrorResponse{Error: err.Error(), Code: code}
	var alloc *bankroll.AllocationError
	if errors.As(err, &alloc) {
		resp.Details = map[string]string{"rule": alloc.Rule, "expected": alloc.Expected, "actual": alloc.Actual}
	}
	if status == http.StatusInternalServerError {
		resp.Error = "Internal error"
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
