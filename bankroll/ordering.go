/*
ordering.go - Checkout priority order and the single-shot legacy checkout

PURPOSE:
  When the manager checks players out one by one, debtors go first so their
  obligations are known before winners are paid.

ORDER:
  1. Drop participants already checked out
  2. Debtors (credit owed > 0) before everyone else
  3. Within each group, display name, case-insensitive
     e.g. "bob" < "CHARLIE" < "manager"

LEGACY CHECKOUT:
  CheckoutNext is the older single-shot entry point: it takes the head of the
  order, records a final chip count and profit/loss, and marks the
  participant DONE. It does not run credit deduction or distribution; the
  multi-phase flow in checkout.go / distribution.go is the canonical path.
*/
package bankroll

import (
	"context"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

func lessByName(a, b *Participant) bool {
	la, lb := strings.ToLower(a.Name), strings.ToLower(b.Name)
	if la != lb {
		return la < lb
	}
	return a.Token < b.Token
}

// sortByName returns pointers into ps ordered by display name.
func sortByName(ps []Participant) []*Participant {
	out := make([]*Participant, len(ps))
	for i := range ps {
		out[i] = &ps[i]
	}
	sort.SliceStable(out, func(i, j int) bool { return lessByName(out[i], out[j]) })
	return out
}

// CheckoutOrder orders not-yet-checked-out participants, debtors first.
func CheckoutOrder(participants []Participant) []Participant {
	var debtors, others []Participant
	for _, p := range sortByName(participants) {
		if p.CheckedOut || p.Checkout == CheckoutDone {
			continue
		}
		if p.IsDebtor() {
			debtors = append(debtors, *p)
		} else {
			others = append(others, *p)
		}
	}
	return append(debtors, others...)
}

// CheckoutOrder returns the session's current checkout queue.
func (e *Engine) CheckoutOrder(ctx context.Context, sessionID SessionID) ([]Participant, error) {
	if _, err := e.Store.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	participants, err := e.Store.ListParticipants(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return CheckoutOrder(participants), nil
}

// CheckoutNext checks out the head of the queue with a final chip count.
// profit_loss = finalCount - total buy-in.
func (e *Engine) CheckoutNext(ctx context.Context, sessionID SessionID, finalCount decimal.Decimal) (*Participant, error) {
	if finalCount.IsNegative() {
		return nil, invalidAmount("final count cannot be negative, got %s", finalCount)
	}
	if _, err := e.session(ctx, sessionID, SessionAccepting, SessionSettling); err != nil {
		return nil, err
	}
	queue, err := e.CheckoutOrder(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(queue) == 0 {
		return nil, invalidState("session "+string(sessionID), "empty", "no participants remaining")
	}
	head := queue[0]

	requests, err := e.Store.ListRequests(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	now := e.Now()
	p, err := e.Store.UpdateParticipant(ctx, sessionID, head.Token, func(p *Participant) error {
		if p.CheckedOut || p.Checkout == CheckoutDone {
			return invalidState(participantSubject(p), p.Checkout, "already checked out")
		}
		if p.Checkout != CheckoutActive && p.Checkout != CheckoutPending {
			return invalidState(participantSubject(p), p.Checkout, "count already submitted, finish the checkout flow")
		}
		buyIn := SumBuyIn(p.Token, requests)
		if p.FrozenBuyIn != nil {
			buyIn = *p.FrozenBuyIn
		} else {
			p.FrozenBuyIn = &buyIn
		}
		v := finalCount
		p.ValidatedCount = &v
		p.Result = &CreditDeduction{
			CreditRepaid:     decimal.Zero,
			ChipsAfterCredit: v,
			ProfitLoss:       v.Sub(buyIn.Total),
			CreditOwed:       decimal.Zero,
		}
		p.Checkout = CheckoutDone
		p.CheckedOut = true
		p.CheckedOutAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	if _, err := e.adjustBank(ctx, sessionID, BankDelta{ChipsInPlay: finalCount.Neg()}); err != nil {
		return nil, err
	}
	e.notify(ctx, sessionID, p.Token, NotifyCheckoutDone, "", "Checked out with %s chips", finalCount)
	return p, nil
}
