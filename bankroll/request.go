/*
request.go - Buy-in request lifecycle

PURPOSE:
  A buy-in request is the only way chips enter play. A participant (or
  someone on their behalf) asks for chips against cash or credit; the
  manager approves, declines, or edits and approves.

REQUEST FLOW:
  ┌──────────────────────────────────────────────────────────────┐
  │                                                              │
  │  create ──▶ PENDING ──approve──▶ APPROVED  ──▶ ledger +amount │
  │                │                                             │
  │                ├────edit──────▶ EDITED    ──▶ ledger +edited  │
  │                │                                             │
  │                └───decline────▶ DECLINED  (no ledger effect)  │
  │                                                              │
  └──────────────────────────────────────────────────────────────┘

  PENDING -> terminal happens exactly once. The status flip is a single
  conditional update keyed on status == PENDING, so of two managers racing
  to approve, one wins and the other gets ErrInvalidState. Terminal
  requests are never resurrected.

ORDERING RULE:
  Conditional update first, side effects second:
  1. Flip request status (the guard)
  2. Book ledger totals on the session
  3. Bump the beneficiary's outstanding credit (credit requests only)
  4. Notify the beneficiary

  Steps 2-3 are independent document writes. If one fails after step 1
  the session pools can be rebuilt with Engine.ReconcilePools.

SEE ALSO:
  - bank.go: bookBuyIn
  - checkout.go: Freeze declines whatever is still pending
*/
package bankroll

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// CreateRequestInput describes a new buy-in request.
type CreateRequestInput struct {
	SessionID   SessionID
	Beneficiary Token
	Submitter   Token
	Type        RequestType
	Amount      decimal.Decimal
}

// CreateRequest records a PENDING buy-in request.
func (e *Engine) CreateRequest(ctx context.Context, in CreateRequestInput) (*Request, error) {
	if !in.Amount.IsPositive() {
		return nil, invalidAmount("request amount must be positive, got %s", in.Amount)
	}
	if !in.Type.Valid() {
		return nil, invalidAmount("unknown request type %q", in.Type)
	}

	if _, err := e.session(ctx, in.SessionID, SessionAccepting); err != nil {
		return nil, err
	}
	if in.Submitter == "" {
		in.Submitter = in.Beneficiary
	}
	beneficiary, err := e.Store.GetParticipant(ctx, in.SessionID, in.Beneficiary)
	if err != nil {
		return nil, err
	}
	if err := acceptsBuyIns(beneficiary); err != nil {
		return nil, err
	}
	submitter := beneficiary
	if in.Submitter != in.Beneficiary {
		if submitter, err = e.Store.GetParticipant(ctx, in.SessionID, in.Submitter); err != nil {
			return nil, err
		}
	}

	r := Request{
		ID:          RequestID(e.NewID()),
		SessionID:   in.SessionID,
		Beneficiary: in.Beneficiary,
		Submitter:   in.Submitter,
		Type:        in.Type,
		Amount:      in.Amount,
		Status:      RequestPending,
		CreatedAt:   e.Now(),
	}
	if err := e.Store.CreateRequest(ctx, r); err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if r.OnBehalfOf() {
		e.notify(ctx, r.SessionID, r.Beneficiary, NotifyRequestCreated, string(r.ID),
			"%s requested %s %s in chips for you", submitter.Name, r.Amount, r.Type)
	}
	return &r, nil
}

// Approve approves a pending request with its original amount and type.
func (e *Engine) Approve(ctx context.Context, id RequestID, resolver Token) (*Request, error) {
	return e.resolve(ctx, id, resolver, RequestApproved, nil, nil)
}

// Decline declines a pending request. No ledger change.
func (e *Engine) Decline(ctx context.Context, id RequestID, resolver Token) (*Request, error) {
	return e.resolve(ctx, id, resolver, RequestDeclined, nil, nil)
}

// EditAndApprove approves with a different amount (and optionally type).
// The original amount stays on the request for audit.
func (e *Engine) EditAndApprove(ctx context.Context, id RequestID, amount decimal.Decimal, typ *RequestType, resolver Token) (*Request, error) {
	if !amount.IsPositive() {
		return nil, invalidAmount("edited amount must be positive, got %s", amount)
	}
	if typ != nil && !typ.Valid() {
		return nil, invalidAmount("unknown request type %q", *typ)
	}
	return e.resolve(ctx, id, resolver, RequestEdited, &amount, typ)
}

func (e *Engine) resolve(ctx context.Context, id RequestID, resolver Token, to RequestStatus, amount *decimal.Decimal, typ *RequestType) (*Request, error) {
	existing, err := e.Store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := e.session(ctx, existing.SessionID, SessionAccepting); err != nil {
		return nil, err
	}
	if to != RequestDeclined {
		beneficiary, err := e.Store.GetParticipant(ctx, existing.SessionID, existing.Beneficiary)
		if err != nil {
			return nil, err
		}
		if err := acceptsBuyIns(beneficiary); err != nil {
			return nil, err
		}
	}

	now := e.Now()
	r, err := e.Store.UpdateRequest(ctx, id, func(r *Request) error {
		if r.Status != RequestPending {
			return invalidState("request "+string(r.ID), r.Status, "already processed")
		}
		r.Status = to
		r.ResolvedBy = &resolver
		r.ResolvedAt = &now
		if to == RequestEdited {
			r.EditedAmount = amount
			r.EditedType = typ
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if to == RequestDeclined {
		e.notify(ctx, r.SessionID, r.Beneficiary, NotifyRequestDeclined, string(r.ID),
			"Your request for %s %s was declined", r.Amount, r.Type)
		return r, nil
	}

	amt, t := r.EffectiveAmount(), r.EffectiveType()
	if _, err := e.Store.UpdateSession(ctx, r.SessionID, func(s *Session) error {
		s.UpdatedAt = now
		return s.Bank.bookBuyIn(t, amt)
	}); err != nil {
		return nil, fmt.Errorf("request %s resolved but ledger not booked: %w", r.ID, err)
	}

	if t == RequestCredit {
		if _, err := e.Store.UpdateParticipant(ctx, r.SessionID, r.Beneficiary, func(p *Participant) error {
			p.OutstandingCredit = p.OutstandingCredit.Add(amt)
			return nil
		}); err != nil {
			return nil, fmt.Errorf("request %s resolved but credit balance not updated: %w", r.ID, err)
		}
	}

	if to == RequestEdited {
		e.notify(ctx, r.SessionID, r.Beneficiary, NotifyRequestEdited, string(r.ID),
			"Your request for %s %s was approved as %s %s", r.Amount, r.Type, amt, t)
	} else {
		e.notify(ctx, r.SessionID, r.Beneficiary, NotifyRequestApproved, string(r.ID),
			"Your request for %s %s was approved", amt, t)
	}
	return r, nil
}

// acceptsBuyIns rejects participants whose buy-in is already frozen.
func acceptsBuyIns(p *Participant) error {
	if p.Checkout != CheckoutActive {
		return invalidState(participantSubject(p), p.Checkout, "buy-in already frozen for checkout")
	}
	return nil
}

// GetRequest returns one request.
func (e *Engine) GetRequest(ctx context.Context, id RequestID) (*Request, error) {
	return e.Store.GetRequest(ctx, id)
}

// ListRequests returns a session's requests, optionally only pending ones.
func (e *Engine) ListRequests(ctx context.Context, sessionID SessionID, pendingOnly bool) ([]Request, error) {
	if _, err := e.Store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	all, err := e.Store.ListRequests(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !pendingOnly {
		return all, nil
	}
	pending := make([]Request, 0, len(all))
	for _, r := range all {
		if r.Status == RequestPending {
			pending = append(pending, r)
		}
	}
	return pending, nil
}

// declinePending declines every still-pending request in the session.
// Requests resolved concurrently are skipped, not failed.
func (e *Engine) declinePending(ctx context.Context, sessionID SessionID, resolver Token) error {
	requests, err := e.Store.ListRequests(ctx, sessionID)
	if err != nil {
		return err
	}
	now := e.Now()
	for _, req := range requests {
		if req.Status != RequestPending {
			continue
		}
		r, err := e.Store.UpdateRequest(ctx, req.ID, func(r *Request) error {
			if r.Status != RequestPending {
				return invalidState("request "+string(r.ID), r.Status, "already processed")
			}
			r.Status = RequestDeclined
			r.ResolvedBy = &resolver
			r.ResolvedAt = &now
			return nil
		})
		if err != nil {
			if IsClientError(err) {
				continue
			}
			return err
		}
		e.notify(ctx, sessionID, r.Beneficiary, NotifyRequestDeclined, string(r.ID),
			"Your request for %s %s was declined because checkout started", r.Amount, r.Type)
	}
	return nil
}
