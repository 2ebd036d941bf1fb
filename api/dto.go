/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the bankroll domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

AMOUNTS:
  Request amounts are json.Number so clients may send 100, 99.5 or "99.5".
  Responses carry decimal.Decimal, which encodes as a JSON string.

VALIDATION:
  Request types carry go-playground/validator tags and are checked by
  decodeAndValidate before any engine call. Semantic rules (positive
  amounts, state guards) stay in the engine.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/bankroll/bankroll"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

type CreateSessionRequest struct {
	Name        string `json:"name" validate:"required,max=80"`
	ManagerName string `json:"manager_name" validate:"required,max=40"`
}

type JoinRequest struct {
	Name string `json:"name" validate:"required,max=40"`
}

// CreateBuyInRequest asks for chips. Beneficiary defaults to the caller.
type CreateBuyInRequest struct {
	Beneficiary string      `json:"beneficiary,omitempty"`
	Type        string      `json:"type" validate:"required,oneof=cash credit"`
	Amount      json.Number `json:"amount" validate:"required,numeric"`
}

type EditRequestRequest struct {
	Amount json.Number `json:"amount" validate:"required,numeric"`
	Type   string      `json:"type,omitempty" validate:"omitempty,oneof=cash credit"`
}

type SubmitCountRequest struct {
	Count           json.Number `json:"count" validate:"required,numeric"`
	PreferredCash   json.Number `json:"preferred_cash,omitempty" validate:"omitempty,numeric"`
	PreferredCredit json.Number `json:"preferred_credit,omitempty" validate:"omitempty,numeric"`
}

// PreferenceRequest revises the cash/credit split. Both empty keeps the
// current preference.
type PreferenceRequest struct {
	PreferredCash   json.Number `json:"preferred_cash,omitempty" validate:"omitempty,numeric"`
	PreferredCredit json.Number `json:"preferred_credit,omitempty" validate:"omitempty,numeric"`
}

type CreditShareRequest struct {
	From   string      `json:"from" validate:"required"`
	Amount json.Number `json:"amount" validate:"required,numeric"`
}

type AllocationRequest struct {
	Token      string               `json:"token" validate:"required"`
	Cash       json.Number          `json:"cash" validate:"required,numeric"`
	CreditFrom []CreditShareRequest `json:"credit_from" validate:"dive"`
}

type DistributionRequest struct {
	Allocations []AllocationRequest `json:"allocations" validate:"required,min=1,dive"`
}

type CheckoutNextRequest struct {
	FinalCount json.Number `json:"final_count" validate:"required,numeric"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

type BankDTO struct {
	ChipsIssued  decimal.Decimal `json:"chips_issued"`
	ChipsInPlay  decimal.Decimal `json:"chips_in_play"`
	CashIn       decimal.Decimal `json:"cash_in"`
	CreditIssued decimal.Decimal `json:"credit_issued"`
	CashPool     decimal.Decimal `json:"cash_pool"`
	CreditPool   decimal.Decimal `json:"credit_pool"`
	CashBalance  decimal.Decimal `json:"cash_balance"`
}

type SessionDTO struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Status    string     `json:"status"`
	Bank      BankDTO    `json:"bank"`
	FrozenAt  *time.Time `json:"frozen_at,omitempty"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

type BuyInDTO struct {
	CashIn   decimal.Decimal `json:"cash_in"`
	CreditIn decimal.Decimal `json:"credit_in"`
	Total    decimal.Decimal `json:"total"`
}

type CreditDeductionDTO struct {
	CreditRepaid     decimal.Decimal `json:"credit_repaid"`
	ChipsAfterCredit decimal.Decimal `json:"chips_after_credit"`
	ProfitLoss       decimal.Decimal `json:"profit_loss"`
	CreditOwed       decimal.Decimal `json:"credit_owed"`
}

type CreditShareDTO struct {
	From   string          `json:"from"`
	Amount decimal.Decimal `json:"amount"`
}

type DistributionDTO struct {
	Cash       decimal.Decimal  `json:"cash"`
	CreditFrom []CreditShareDTO `json:"credit_from"`
}

type ParticipantDTO struct {
	Token             string              `json:"token"`
	Name              string              `json:"name"`
	Manager           bool                `json:"manager"`
	Checkout          string              `json:"checkout_status"`
	OutstandingCredit decimal.Decimal     `json:"outstanding_credit"`
	FrozenBuyIn       *BuyInDTO           `json:"frozen_buy_in,omitempty"`
	SubmittedCount    *decimal.Decimal    `json:"submitted_count,omitempty"`
	ValidatedCount    *decimal.Decimal    `json:"validated_count,omitempty"`
	PreferredCash     decimal.Decimal     `json:"preferred_cash"`
	PreferredCredit   decimal.Decimal     `json:"preferred_credit"`
	InputLocked       bool                `json:"input_locked"`
	Result            *CreditDeductionDTO `json:"result,omitempty"`
	Distribution      *DistributionDTO    `json:"distribution,omitempty"`
	CheckedOut        bool                `json:"checked_out"`
	JoinedAt          time.Time           `json:"joined_at"`
}

type RequestDTO struct {
	ID           string           `json:"id"`
	SessionID    string           `json:"session_id"`
	Beneficiary  string           `json:"beneficiary"`
	Submitter    string           `json:"submitter"`
	Type         string           `json:"type"`
	Amount       decimal.Decimal  `json:"amount"`
	Status       string           `json:"status"`
	EditedAmount *decimal.Decimal `json:"edited_amount,omitempty"`
	EditedType   *string          `json:"edited_type,omitempty"`
	ResolvedBy   *string          `json:"resolved_by,omitempty"`
	ResolvedAt   *time.Time       `json:"resolved_at,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

// AuthResponse is returned by create and join; Token is the bearer JWT.
type AuthResponse struct {
	Session     SessionDTO     `json:"session"`
	Participant ParticipantDTO `json:"participant"`
	Token       string         `json:"token"`
	JoinURL     string         `json:"join_url"`
}

type ProposalDTO struct {
	Token        string          `json:"token"`
	Name         string          `json:"name"`
	Owed         decimal.Decimal `json:"owed"`
	Distribution DistributionDTO `json:"distribution"`
}

type ActionDTO struct {
	Kind         string          `json:"kind"`
	Amount       decimal.Decimal `json:"amount"`
	Counterparty string          `json:"counterparty,omitempty"`
}

type PoolsDTO struct {
	CashPool   decimal.Decimal `json:"cash_pool"`
	CreditPool decimal.Decimal `json:"credit_pool"`
}

type SummaryDTO struct {
	Session         SessionDTO `json:"session"`
	Phase           string     `json:"phase,omitempty"`
	Participants    int        `json:"participants"`
	Done            int        `json:"done"`
	PendingRequests int        `json:"pending_requests"`
	Balanced        bool       `json:"balanced"`
	Derived         PoolsDTO   `json:"derived_pools"`
	AsOf            time.Time  `json:"as_of"`
}

type ReconcileResponse struct {
	Changed bool       `json:"changed"`
	Session SessionDTO `json:"session"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ScenarioResponse hands back a bearer token for every seeded participant.
type ScenarioResponse struct {
	Scenario ScenarioDTO       `json:"scenario"`
	Session  SessionDTO        `json:"session"`
	Tokens   map[string]string `json:"tokens"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toSessionDTO(s *bankroll.Session) SessionDTO {
	b := s.Bank
	return SessionDTO{
		ID:     string(s.ID),
		Name:   s.Name,
		Status: string(s.Status),
		Bank: BankDTO{
			ChipsIssued:  b.ChipsIssued,
			ChipsInPlay:  b.ChipsInPlay,
			CashIn:       b.CashIn,
			CreditIssued: b.CreditIssued,
			CashPool:     b.CashPool,
			CreditPool:   b.CreditPool,
			CashBalance:  b.CashBalance,
		},
		FrozenAt:  s.FrozenAt,
		ClosedAt:  s.ClosedAt,
		CreatedAt: s.CreatedAt,
	}
}

func toDistributionDTO(d bankroll.Distribution) DistributionDTO {
	shares := make([]CreditShareDTO, len(d.CreditFrom))
	for i, c := range d.CreditFrom {
		shares[i] = CreditShareDTO{From: string(c.From), Amount: c.Amount}
	}
	return DistributionDTO{Cash: d.Cash, CreditFrom: shares}
}

func toParticipantDTO(p *bankroll.Participant) ParticipantDTO {
	dto := ParticipantDTO{
		Token:             string(p.Token),
		Name:              p.Name,
		Manager:           p.Manager,
		Checkout:          string(p.Checkout),
		OutstandingCredit: p.OutstandingCredit,
		SubmittedCount:    p.SubmittedCount,
		ValidatedCount:    p.ValidatedCount,
		PreferredCash:     p.Preference.Cash,
		PreferredCredit:   p.Preference.Credit,
		InputLocked:       p.InputLocked,
		CheckedOut:        p.CheckedOut,
		JoinedAt:          p.JoinedAt,
	}
	if b := p.FrozenBuyIn; b != nil {
		dto.FrozenBuyIn = &BuyInDTO{CashIn: b.CashIn, CreditIn: b.CreditIn, Total: b.Total}
	}
	if r := p.Result; r != nil {
		dto.Result = &CreditDeductionDTO{
			CreditRepaid:     r.CreditRepaid,
			ChipsAfterCredit: r.ChipsAfterCredit,
			ProfitLoss:       r.ProfitLoss,
			CreditOwed:       r.CreditOwed,
		}
	}
	if p.Distribution != nil {
		d := toDistributionDTO(*p.Distribution)
		dto.Distribution = &d
	}
	return dto
}

func toParticipantDTOs(ps []bankroll.Participant) []ParticipantDTO {
	dtos := make([]ParticipantDTO, len(ps))
	for i := range ps {
		dtos[i] = toParticipantDTO(&ps[i])
	}
	return dtos
}

func toRequestDTO(r *bankroll.Request) RequestDTO {
	dto := RequestDTO{
		ID:           string(r.ID),
		SessionID:    string(r.SessionID),
		Beneficiary:  string(r.Beneficiary),
		Submitter:    string(r.Submitter),
		Type:         string(r.Type),
		Amount:       r.Amount,
		Status:       string(r.Status),
		EditedAmount: r.EditedAmount,
		ResolvedAt:   r.ResolvedAt,
		CreatedAt:    r.CreatedAt,
	}
	if r.EditedType != nil {
		t := string(*r.EditedType)
		dto.EditedType = &t
	}
	if r.ResolvedBy != nil {
		by := string(*r.ResolvedBy)
		dto.ResolvedBy = &by
	}
	return dto
}
