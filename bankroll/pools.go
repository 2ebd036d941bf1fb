/*
pools.go - Re-deriving session pools from participants (saga recovery)

PURPOSE:
  Confirm and validate write the participant first and the session pools
  second. There is no cross-document transaction, so a failure between the
  two leaves the pools stale. The recovery rule: pools are a pure function
  of participant and request state, and can always be recomputed.

DERIVATION:
  cash_in(p)  = frozen cash_in if frozen, else Σ effective cash requests
  cash_pool   = Σ cash_in(p) - Σ distribution.cash of DONE participants
  credit_pool = Σ credit_owed of DONE debtors - Σ credit_from of DONE participants

  Both are what the incremental updates would have produced had every saga
  completed.

SEE ALSO:
  - distribution.go: Confirm (saga)
  - api/scheduler.go: PoolReconciler runs ReconcilePools periodically
*/
package bankroll

import (
	"context"
	"log"

	"github.com/shopspring/decimal"
)

// Pools holds derived pool values.
type Pools struct {
	CashPool   decimal.Decimal
	CreditPool decimal.Decimal
}

func derivedCashPool(participants []Participant, requests []Request) decimal.Decimal {
	pool := decimal.Zero
	for i := range participants {
		p := &participants[i]
		if p.FrozenBuyIn != nil {
			pool = pool.Add(p.FrozenBuyIn.CashIn)
		} else {
			pool = pool.Add(SumBuyIn(p.Token, requests).CashIn)
		}
		if p.Checkout == CheckoutDone && p.Distribution != nil {
			pool = pool.Sub(p.Distribution.Cash)
		}
	}
	return pool
}

// DerivePools recomputes both pools from participant and request state.
func DerivePools(participants []Participant, requests []Request) Pools {
	credit := decimal.Zero
	for i := range participants {
		p := &participants[i]
		if p.Checkout != CheckoutDone {
			continue
		}
		credit = credit.Add(p.CreditOwed())
		if p.Distribution != nil {
			credit = credit.Sub(p.Distribution.CreditTotal())
		}
	}
	return Pools{
		CashPool:   derivedCashPool(participants, requests),
		CreditPool: credit,
	}
}

// ReconcilePools rewrites the session pools when they have drifted from the
// derived values. Returns whether anything changed.
func (e *Engine) ReconcilePools(ctx context.Context, sessionID SessionID) (bool, error) {
	participants, err := e.Store.ListParticipants(ctx, sessionID)
	if err != nil {
		return false, err
	}
	requests, err := e.Store.ListRequests(ctx, sessionID)
	if err != nil {
		return false, err
	}
	derived := DerivePools(participants, requests)

	changed := false
	_, err = e.Store.UpdateSession(ctx, sessionID, func(s *Session) error {
		if s.Status == SessionClosed {
			return invalidState("session "+string(s.ID), s.Status, "closed sessions are not reconciled")
		}
		if s.Bank.CashPool.Equal(derived.CashPool) && s.Bank.CreditPool.Equal(derived.CreditPool) {
			return nil
		}
		log.Printf("[Engine] session %s pools drifted: cash %s -> %s, credit %s -> %s",
			s.ID, s.Bank.CashPool, derived.CashPool, s.Bank.CreditPool, derived.CreditPool)
		s.Bank.CashPool = derived.CashPool
		s.Bank.CreditPool = derived.CreditPool
		s.UpdatedAt = e.Now()
		changed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return changed, nil
}
