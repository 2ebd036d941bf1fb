package bankroll

import "github.com/shopspring/decimal"

// CreditDeduction is the result of repaying credit out of a chip count.
type CreditDeduction struct {
	CreditRepaid     decimal.Decimal
	ChipsAfterCredit decimal.Decimal
	ProfitLoss       decimal.Decimal
	CreditOwed       decimal.Decimal
}

// DeductCredit repays frozen credit out of the validated chip count first.
//
//	credit_repaid      = min(v, credit_in)
//	chips_after_credit = max(0, v - credit_in)
//	credit_owed        = max(0, credit_in - v)
//	profit_loss        = v - (cash_in + credit_in)
//
// CreditRepaid + CreditOwed always equals credit_in, and ChipsAfterCredit
// and CreditOwed are never both positive.
func DeductCredit(v, cashIn, creditIn decimal.Decimal) CreditDeduction {
	return CreditDeduction{
		CreditRepaid:     decimal.Min(v, creditIn),
		ChipsAfterCredit: decimal.Max(decimal.Zero, v.Sub(creditIn)),
		CreditOwed:       decimal.Max(decimal.Zero, creditIn.Sub(v)),
		ProfitLoss:       v.Sub(cashIn.Add(creditIn)),
	}
}
