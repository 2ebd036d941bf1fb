/*
Package bankroll provides the ledger and settlement engine for a
shared-bankroll session.

PURPOSE:
  Participants buy chips with cash or on credit while a session is running.
  When the session settles, every participant reports a chip count, credit
  is repaid out of chips first, and the remaining value is paid out of the
  shared cash pool and out of other participants' debts.

KEY CONCEPTS IN THIS FILE (types.go):
  - Session:     The bank record and coarse lifecycle status
  - Bank:        Chip/cash/credit totals owned by the session
  - Participant: One player and their checkout progress
  - Request:     A buy-in request awaiting manager approval

DESIGN PRINCIPLES:
  1. Precision: all chip and money values use decimal.Decimal (1 chip == 1 unit)
  2. Closed enums: statuses are typed strings with explicit transition tables
  3. Snapshots: FrozenBuyIn is captured once and never recomputed, so later
     request edits cannot move an in-progress settlement
  4. Session owns the pools: cash_pool/credit_pool live only on Bank

SEE ALSO:
  - bank.go: Ledger invariants and pool deltas
  - checkout.go: Participant state machine
  - request.go: Buy-in request workflow
*/
package bankroll

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type SessionID string
type Token string
type RequestID string

// =============================================================================
// SESSION
// =============================================================================

type SessionStatus string

const (
	SessionAccepting SessionStatus = "accepting"
	SessionSettling  SessionStatus = "settling"
	SessionClosed    SessionStatus = "closed"
)

// Session is the session-level bank record.
type Session struct {
	ID     SessionID
	Name   string
	Status SessionStatus
	Bank   Bank

	FrozenAt  *time.Time
	ClosedAt  *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SettlementPhase is the derived sub-state of a SETTLING session.
type SettlementPhase string

const (
	PhaseCollecting   SettlementPhase = "collecting"   // some participants have not had a count validated
	PhaseDistributing SettlementPhase = "distributing" // counts validated, pools being allocated
	PhaseComplete     SettlementPhase = "complete"     // everyone is done
)

// PhaseOf derives the settlement phase from participant checkout states.
// Returns "" while the session is not settling.
func PhaseOf(s *Session, participants []Participant) SettlementPhase {
	if s.Status != SessionSettling {
		return ""
	}
	phase := PhaseComplete
	for _, p := range participants {
		switch p.Checkout {
		case CheckoutActive, CheckoutPending, CheckoutSubmitted:
			return PhaseCollecting
		case CheckoutCreditDeducted, CheckoutAwaitingDistribution, CheckoutDistributed:
			phase = PhaseDistributing
		}
	}
	return phase
}

// =============================================================================
// PARTICIPANT
// =============================================================================

type CheckoutStatus string

const (
	CheckoutActive               CheckoutStatus = "active" // still playing, not frozen
	CheckoutPending              CheckoutStatus = "pending"
	CheckoutSubmitted            CheckoutStatus = "submitted"
	CheckoutCreditDeducted       CheckoutStatus = "credit_deducted"
	CheckoutAwaitingDistribution CheckoutStatus = "awaiting_distribution"
	CheckoutDistributed          CheckoutStatus = "distributed"
	CheckoutDone                 CheckoutStatus = "done"
)

// BuyIn is a participant's cumulative contribution.
type BuyIn struct {
	CashIn   decimal.Decimal
	CreditIn decimal.Decimal
	Total    decimal.Decimal
}

// Split is a preferred (or allocated) cash/credit division of a payout.
type Split struct {
	Cash   decimal.Decimal
	Credit decimal.Decimal
}

// CreditShare is one slice of credit a participant receives from a debtor.
type CreditShare struct {
	From   Token
	Amount decimal.Decimal
}

// Distribution is the final allocation paid to a participant.
type Distribution struct {
	Cash       decimal.Decimal
	CreditFrom []CreditShare
}

// CreditTotal sums all credit shares.
func (d Distribution) CreditTotal() decimal.Decimal {
	total := decimal.Zero
	for _, c := range d.CreditFrom {
		total = total.Add(c.Amount)
	}
	return total
}

type Participant struct {
	Token     Token
	SessionID SessionID
	Name      string
	Manager   bool

	Checkout CheckoutStatus

	// OutstandingCredit is the running credit balance from approved credit
	// requests. It is not reset at checkout; Result.CreditOwed is the residual.
	OutstandingCredit decimal.Decimal

	FrozenBuyIn    *BuyIn
	SubmittedCount *decimal.Decimal
	ValidatedCount *decimal.Decimal
	Preference     Split
	InputLocked    bool

	Result       *CreditDeduction
	Distribution *Distribution

	CheckedOut   bool
	CheckedOutAt *time.Time
	JoinedAt     time.Time
}

// IsDebtor reports whether the participant still owes credit. Before a count
// has been validated the outstanding credit balance is used instead.
func (p *Participant) IsDebtor() bool {
	if p.Result != nil {
		return p.Result.CreditOwed.IsPositive()
	}
	return p.OutstandingCredit.IsPositive()
}

// CreditOwed is the residual debt after validation, or zero.
func (p *Participant) CreditOwed() decimal.Decimal {
	if p.Result == nil {
		return decimal.Zero
	}
	return p.Result.CreditOwed
}

// =============================================================================
// BUY-IN REQUEST
// =============================================================================

type RequestType string

const (
	RequestCash   RequestType = "cash"
	RequestCredit RequestType = "credit"
)

func (t RequestType) Valid() bool {
	return t == RequestCash || t == RequestCredit
}

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestDeclined RequestStatus = "declined"
	RequestEdited   RequestStatus = "edited"
)

type Request struct {
	ID          RequestID
	SessionID   SessionID
	Beneficiary Token
	Submitter   Token
	Type        RequestType
	Amount      decimal.Decimal
	Status      RequestStatus

	// Set only when Status == RequestEdited. Amount keeps the original value.
	EditedAmount *decimal.Decimal
	EditedType   *RequestType

	ResolvedBy *Token
	ResolvedAt *time.Time
	CreatedAt  time.Time
}

// OnBehalfOf reports whether someone other than the beneficiary submitted it.
func (r *Request) OnBehalfOf() bool {
	return r.Submitter != r.Beneficiary
}

// EffectiveAmount is what the request contributed to the ledger.
func (r *Request) EffectiveAmount() decimal.Decimal {
	switch r.Status {
	case RequestApproved:
		return r.Amount
	case RequestEdited:
		if r.EditedAmount != nil {
			return *r.EditedAmount
		}
	}
	return decimal.Zero
}

// EffectiveType is the type the ledger effect was booked under.
func (r *Request) EffectiveType() RequestType {
	if r.Status == RequestEdited && r.EditedType != nil {
		return *r.EditedType
	}
	return r.Type
}

// SumBuyIn totals the effective amounts of a beneficiary's requests.
func SumBuyIn(token Token, requests []Request) BuyIn {
	b := BuyIn{CashIn: decimal.Zero, CreditIn: decimal.Zero}
	for i := range requests {
		r := &requests[i]
		if r.Beneficiary != token {
			continue
		}
		amt := r.EffectiveAmount()
		if amt.IsZero() {
			continue
		}
		if r.EffectiveType() == RequestCredit {
			b.CreditIn = b.CreditIn.Add(amt)
		} else {
			b.CashIn = b.CashIn.Add(amt)
		}
	}
	b.Total = b.CashIn.Add(b.CreditIn)
	return b
}

// =============================================================================
// COPIES - stores hand out copies so callers never alias stored documents
// =============================================================================

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func cloneDecimal(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}

func (s Session) Clone() Session {
	s.FrozenAt = cloneTime(s.FrozenAt)
	s.ClosedAt = cloneTime(s.ClosedAt)
	return s
}

func (p Participant) Clone() Participant {
	if p.FrozenBuyIn != nil {
		b := *p.FrozenBuyIn
		p.FrozenBuyIn = &b
	}
	p.SubmittedCount = cloneDecimal(p.SubmittedCount)
	p.ValidatedCount = cloneDecimal(p.ValidatedCount)
	if p.Result != nil {
		r := *p.Result
		p.Result = &r
	}
	if p.Distribution != nil {
		d := Distribution{Cash: p.Distribution.Cash, CreditFrom: append([]CreditShare{}, p.Distribution.CreditFrom...)}
		p.Distribution = &d
	}
	p.CheckedOutAt = cloneTime(p.CheckedOutAt)
	return p
}

func (r Request) Clone() Request {
	r.EditedAmount = cloneDecimal(r.EditedAmount)
	if r.EditedType != nil {
		t := *r.EditedType
		r.EditedType = &t
	}
	if r.ResolvedBy != nil {
		t := *r.ResolvedBy
		r.ResolvedBy = &t
	}
	r.ResolvedAt = cloneTime(r.ResolvedAt)
	return r
}
