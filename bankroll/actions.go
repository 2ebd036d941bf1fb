package bankroll

import (
	"context"

	"github.com/shopspring/decimal"
)

type ActionKind string

const (
	ActionReceiveCash   ActionKind = "receive_cash"
	ActionReceiveCredit ActionKind = "receive_credit"
	ActionPayCredit     ActionKind = "pay_credit"
)

// Action is one settlement obligation for a participant. Counterparty is set
// for credit actions: the debtor for receive_credit, the creditor for
// pay_credit.
type Action struct {
	Kind         ActionKind
	Amount       decimal.Decimal
	Counterparty Token
}

// DeriveActions renders a participant's distribution as obligations. The
// pay_credit side is found by scanning everyone else's stored distribution,
// so it always reflects the latest overrides.
func DeriveActions(p *Participant, all []Participant) []Action {
	actions := []Action{}
	if p.Distribution != nil {
		if p.Distribution.Cash.IsPositive() {
			actions = append(actions, Action{Kind: ActionReceiveCash, Amount: p.Distribution.Cash})
		}
		for _, c := range p.Distribution.CreditFrom {
			actions = append(actions, Action{Kind: ActionReceiveCredit, Amount: c.Amount, Counterparty: c.From})
		}
	}
	for _, other := range sortByName(all) {
		if other.Token == p.Token || other.Distribution == nil {
			continue
		}
		for _, c := range other.Distribution.CreditFrom {
			if c.From == p.Token {
				actions = append(actions, Action{Kind: ActionPayCredit, Amount: c.Amount, Counterparty: other.Token})
			}
		}
	}
	return actions
}

// Actions returns the derived obligations of one participant.
func (e *Engine) Actions(ctx context.Context, sessionID SessionID, token Token) ([]Action, error) {
	p, err := e.Store.GetParticipant(ctx, sessionID, token)
	if err != nil {
		return nil, err
	}
	all, err := e.Store.ListParticipants(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return DeriveActions(p, all), nil
}
