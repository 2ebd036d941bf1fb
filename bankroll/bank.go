/*
bank.go - Session-level bank record and its invariants

PURPOSE:
  The Bank is the one place chip, cash and credit totals live. Every other
  component reads it; only the request workflow, checkout and distribution
  mutate it, and always through Increase or Apply.

INVARIANTS:
  1. chips_issued == cash_in + credit_issued while the session is ACCEPTING
  2. cash_pool grows only from approved/edited CASH requests and shrinks
     only by confirmed cash payouts
  3. credit_pool grows only when a debtor's distribution is confirmed
     (their residual debt becomes claimable) and shrinks only by confirmed
     credit payouts

EXAMPLE FLOW:
  1. Alice buys 100 cash:    cash_in +100, chips_issued +100, cash_pool +100
  2. Bob takes 50 credit:    credit_issued +50, chips_issued +50
  3. Settle, Bob ends with 0 chips -> credit_owed 50
  4. Bob confirmed:          credit_pool +50
  5. Alice confirmed with {cash 100, credit_from bob 50}:
                             cash_pool -100, credit_pool -50

SEE ALSO:
  - pools.go: Re-deriving pools from participants (saga recovery)
*/
package bankroll

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// LedgerKind names a monotonically increasing bank counter.
type LedgerKind string

const (
	LedgerCashIn       LedgerKind = "cash_in"
	LedgerCreditIssued LedgerKind = "credit_issued"
	LedgerChipsIssued  LedgerKind = "chips_issued"
	LedgerChipsInPlay  LedgerKind = "chips_in_play"
)

type Bank struct {
	ChipsIssued  decimal.Decimal
	ChipsInPlay  decimal.Decimal
	CashIn       decimal.Decimal
	CreditIssued decimal.Decimal
	CashPool     decimal.Decimal
	CreditPool   decimal.Decimal
	CashBalance  decimal.Decimal // cash physically held by the bank
}

// NewBank returns a bank with every total at zero.
func NewBank() Bank {
	return Bank{
		ChipsIssued:  decimal.Zero,
		ChipsInPlay:  decimal.Zero,
		CashIn:       decimal.Zero,
		CreditIssued: decimal.Zero,
		CashPool:     decimal.Zero,
		CreditPool:   decimal.Zero,
		CashBalance:  decimal.Zero,
	}
}

// Increase bumps one of the monotone counters.
func (b *Bank) Increase(kind LedgerKind, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return invalidAmount("ledger %s cannot decrease by %s", kind, amount)
	}
	switch kind {
	case LedgerCashIn:
		b.CashIn = b.CashIn.Add(amount)
	case LedgerCreditIssued:
		b.CreditIssued = b.CreditIssued.Add(amount)
	case LedgerChipsIssued:
		b.ChipsIssued = b.ChipsIssued.Add(amount)
	case LedgerChipsInPlay:
		b.ChipsInPlay = b.ChipsInPlay.Add(amount)
	default:
		return fmt.Errorf("unknown ledger kind %q", kind)
	}
	return nil
}

// Balanced reports the issuance invariant.
func (b Bank) Balanced() bool {
	return b.ChipsIssued.Equal(b.CashIn.Add(b.CreditIssued))
}

// BankDelta is a signed change to the non-monotone parts of the bank.
type BankDelta struct {
	ChipsInPlay decimal.Decimal
	CashPool    decimal.Decimal
	CreditPool  decimal.Decimal
	CashBalance decimal.Decimal
}

func (d BankDelta) IsZero() bool {
	return d.ChipsInPlay.IsZero() && d.CashPool.IsZero() && d.CreditPool.IsZero() && d.CashBalance.IsZero()
}

// Apply adds the delta to the bank.
func (b *Bank) Apply(d BankDelta) {
	b.ChipsInPlay = b.ChipsInPlay.Add(d.ChipsInPlay)
	b.CashPool = b.CashPool.Add(d.CashPool)
	b.CreditPool = b.CreditPool.Add(d.CreditPool)
	b.CashBalance = b.CashBalance.Add(d.CashBalance)
}

// bookBuyIn applies the ledger effects of an approved request.
func (b *Bank) bookBuyIn(t RequestType, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return invalidAmount("buy-in must be positive, got %s", amount)
	}
	kind := LedgerCashIn
	if t == RequestCredit {
		kind = LedgerCreditIssued
	}
	for _, k := range []LedgerKind{kind, LedgerChipsIssued, LedgerChipsInPlay} {
		if err := b.Increase(k, amount); err != nil {
			return err
		}
	}
	if t == RequestCash {
		b.CashPool = b.CashPool.Add(amount)
		b.CashBalance = b.CashBalance.Add(amount)
	}
	return nil
}

// payoutDelta is the pool movement of a confirmed distribution.
func payoutDelta(dist Distribution, creditOwed decimal.Decimal) BankDelta {
	return BankDelta{
		ChipsInPlay: decimal.Zero,
		CashPool:    dist.Cash.Neg(),
		CreditPool:  creditOwed.Sub(dist.CreditTotal()),
		CashBalance: dist.Cash.Neg(),
	}
}
