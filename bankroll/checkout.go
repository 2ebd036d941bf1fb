/*
checkout.go - Per-participant checkout state machine

PURPOSE:
  Moves one participant from "must report a chip count" to "fully settled".

STATES:
  ACTIVE ──freeze──▶ PENDING ──submit──▶ SUBMITTED ──validate──▶ CREDIT_DEDUCTED
                        ▲                   │  │                      │
                        └──────reject───────┘  │                acknowledge
                                               │                      ▼
                                     fast path │            AWAITING_DISTRIBUTION
                                               ▼                      │
                                             DONE ◀──confirm── DISTRIBUTED ◀─override─┘

  CREDIT_DEDUCTED may go straight to DISTRIBUTED when the manager overrides
  before the participant acknowledges. DISTRIBUTED may be re-overridden.

FAST PATH:
  A cash-only participant (frozen credit_in == 0) with no credit preference
  is paid immediately: distribution {cash: chips_after_credit}, status DONE,
  cash pool decremented at validation.

GUARDS:
  Every transition re-reads the participant inside a conditional update and
  fails with ErrInvalidState naming the current status. Nothing is retried.

SEE ALSO:
  - calculator.go: DeductCredit
  - distribution.go: Suggest/Override/Confirm
*/
package bankroll

import (
	"context"
	"fmt"
	"log"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TRANSITION TABLE
// =============================================================================

var checkoutTransitions = map[CheckoutStatus][]CheckoutStatus{
	CheckoutActive:               {CheckoutPending},
	CheckoutPending:              {CheckoutSubmitted},
	CheckoutSubmitted:            {CheckoutCreditDeducted, CheckoutDone, CheckoutPending},
	CheckoutCreditDeducted:       {CheckoutAwaitingDistribution, CheckoutDistributed},
	CheckoutAwaitingDistribution: {CheckoutDistributed},
	CheckoutDistributed:          {CheckoutDistributed, CheckoutDone},
	CheckoutDone:                 nil,
}

// CanTransition reports whether from -> to is a legal checkout move.
func (s CheckoutStatus) CanTransition(to CheckoutStatus) bool {
	for _, next := range checkoutTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s CheckoutStatus) Valid() bool {
	_, ok := checkoutTransitions[s]
	return ok
}

// advance guards and applies a transition on p.
func advance(p *Participant, to CheckoutStatus) error {
	if !p.Checkout.CanTransition(to) {
		return invalidState(participantSubject(p), p.Checkout, fmt.Sprintf("cannot move to %s", to))
	}
	p.Checkout = to
	return nil
}

func validSplit(s Split) error {
	if s.Cash.IsNegative() || s.Credit.IsNegative() {
		return invalidAmount("preferred split cannot be negative (cash %s, credit %s)", s.Cash, s.Credit)
	}
	return nil
}

// =============================================================================
// FREEZE
// =============================================================================

// freeze snapshots a participant's buy-in and moves them to PENDING.
// Participants already past ACTIVE are left untouched.
func (e *Engine) freeze(ctx context.Context, sessionID SessionID, token Token, requests []Request) (*Participant, error) {
	buyIn := SumBuyIn(token, requests)
	return e.Store.UpdateParticipant(ctx, sessionID, token, func(p *Participant) error {
		if err := advance(p, CheckoutPending); err != nil {
			return err
		}
		frozen := buyIn
		p.FrozenBuyIn = &frozen
		return nil
	})
}

// BeginCheckout freezes one participant while the session is still
// accepting buy-ins (mid-session checkout). Pending requests are declined
// session-wide first so no late approval can land after the snapshot.
func (e *Engine) BeginCheckout(ctx context.Context, sessionID SessionID, token Token) (*Participant, error) {
	if _, err := e.session(ctx, sessionID, SessionAccepting); err != nil {
		return nil, err
	}
	p, err := e.Store.GetParticipant(ctx, sessionID, token)
	if err != nil {
		return nil, err
	}
	if p.Checkout != CheckoutActive {
		return nil, invalidState(participantSubject(p), p.Checkout, "checkout already started")
	}
	if err := e.declinePending(ctx, sessionID, token); err != nil {
		return nil, err
	}
	requests, err := e.Store.ListRequests(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return e.freeze(ctx, sessionID, token, requests)
}

// =============================================================================
// SUBMIT / REJECT / OVERRIDE
// =============================================================================

// SubmitCount records the participant's own chip count and payout preference.
func (e *Engine) SubmitCount(ctx context.Context, sessionID SessionID, token Token, count decimal.Decimal, pref Split) (*Participant, error) {
	if count.IsNegative() {
		return nil, invalidAmount("chip count cannot be negative, got %s", count)
	}
	if err := validSplit(pref); err != nil {
		return nil, err
	}
	if _, err := e.session(ctx, sessionID, SessionAccepting, SessionSettling); err != nil {
		return nil, err
	}
	return e.Store.UpdateParticipant(ctx, sessionID, token, func(p *Participant) error {
		if p.InputLocked {
			return fmt.Errorf("%s: %w", participantSubject(p), ErrLocked)
		}
		if p.Checkout != CheckoutPending {
			return invalidState(participantSubject(p), p.Checkout, "count can only be submitted while pending")
		}
		if err := advance(p, CheckoutSubmitted); err != nil {
			return err
		}
		c := count
		p.SubmittedCount = &c
		p.Preference = pref
		return nil
	})
}

// RejectCount sends a submitted count back to PENDING and clears it.
func (e *Engine) RejectCount(ctx context.Context, sessionID SessionID, token Token) (*Participant, error) {
	if _, err := e.session(ctx, sessionID, SessionAccepting, SessionSettling); err != nil {
		return nil, err
	}
	p, err := e.Store.UpdateParticipant(ctx, sessionID, token, func(p *Participant) error {
		if p.Checkout != CheckoutSubmitted {
			return invalidState(participantSubject(p), p.Checkout, "only submitted counts can be rejected")
		}
		if err := advance(p, CheckoutPending); err != nil {
			return err
		}
		p.SubmittedCount = nil
		p.Preference = Split{Cash: decimal.Zero, Credit: decimal.Zero}
		p.InputLocked = false
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.notify(ctx, sessionID, token, NotifyCountRejected, "", "Your chip count was rejected, please count again")
	return p, nil
}

// OverrideCount lets the manager supply the count directly. The participant's
// input is locked and the count is validated immediately.
func (e *Engine) OverrideCount(ctx context.Context, sessionID SessionID, token Token, count decimal.Decimal, pref *Split) (*Participant, error) {
	if count.IsNegative() {
		return nil, invalidAmount("chip count cannot be negative, got %s", count)
	}
	if pref != nil {
		if err := validSplit(*pref); err != nil {
			return nil, err
		}
	}
	if _, err := e.session(ctx, sessionID, SessionAccepting, SessionSettling); err != nil {
		return nil, err
	}
	if _, err := e.Store.UpdateParticipant(ctx, sessionID, token, func(p *Participant) error {
		switch p.Checkout {
		case CheckoutPending:
			if err := advance(p, CheckoutSubmitted); err != nil {
				return err
			}
		case CheckoutSubmitted:
		default:
			return invalidState(participantSubject(p), p.Checkout, "count can only be overridden while pending or submitted")
		}
		c := count
		p.InputLocked = true
		p.SubmittedCount = &c
		if pref != nil {
			p.Preference = *pref
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return e.ValidateCount(ctx, sessionID, token)
}

// =============================================================================
// VALIDATE
// =============================================================================

// ValidateCount accepts the submitted count, runs the credit deduction
// against the frozen buy-in, and either finishes the participant on the fast
// path or parks them in CREDIT_DEDUCTED for distribution.
func (e *Engine) ValidateCount(ctx context.Context, sessionID SessionID, token Token) (*Participant, error) {
	if _, err := e.session(ctx, sessionID, SessionAccepting, SessionSettling); err != nil {
		return nil, err
	}

	now := e.Now()
	fastPath := false
	p, err := e.Store.UpdateParticipant(ctx, sessionID, token, func(p *Participant) error {
		if p.Checkout != CheckoutSubmitted {
			return invalidState(participantSubject(p), p.Checkout, "only submitted counts can be validated")
		}
		if p.SubmittedCount == nil || p.FrozenBuyIn == nil {
			return invalidState(participantSubject(p), p.Checkout, "missing count or frozen buy-in")
		}
		v := *p.SubmittedCount
		result := DeductCredit(v, p.FrozenBuyIn.CashIn, p.FrozenBuyIn.CreditIn)
		p.ValidatedCount = &v
		p.Result = &result

		if p.FrozenBuyIn.CreditIn.IsZero() && p.Preference.Credit.IsZero() {
			fastPath = true
			p.Distribution = &Distribution{Cash: result.ChipsAfterCredit, CreditFrom: []CreditShare{}}
			p.CheckedOut = true
			p.CheckedOutAt = &now
			return advance(p, CheckoutDone)
		}
		fastPath = false
		return advance(p, CheckoutCreditDeducted)
	})
	if err != nil {
		return nil, err
	}

	delta := BankDelta{ChipsInPlay: p.ValidatedCount.Neg()}
	if fastPath {
		delta.CashPool = p.Distribution.Cash.Neg()
		delta.CashBalance = p.Distribution.Cash.Neg()
	}
	if _, err := e.adjustBank(ctx, sessionID, delta); err != nil {
		log.Printf("[Engine] session %s: count for %s validated but bank not adjusted: %v", sessionID, p.Name, err)
		return nil, fmt.Errorf("count validated but bank not adjusted: %w", err)
	}

	if fastPath {
		e.notify(ctx, sessionID, token, NotifyCheckoutDone, "",
			"Checked out: collect %s in cash", p.Distribution.Cash)
	}
	return p, nil
}

// AwaitDistribution is the participant acknowledging their credit deduction,
// optionally revising their cash/credit preference.
func (e *Engine) AwaitDistribution(ctx context.Context, sessionID SessionID, token Token, pref *Split) (*Participant, error) {
	if pref != nil {
		if err := validSplit(*pref); err != nil {
			return nil, err
		}
	}
	if _, err := e.session(ctx, sessionID, SessionAccepting, SessionSettling); err != nil {
		return nil, err
	}
	return e.Store.UpdateParticipant(ctx, sessionID, token, func(p *Participant) error {
		if p.Checkout != CheckoutCreditDeducted {
			return invalidState(participantSubject(p), p.Checkout, "credit has not been deducted yet")
		}
		if pref != nil {
			p.Preference = *pref
		}
		return advance(p, CheckoutAwaitingDistribution)
	})
}
