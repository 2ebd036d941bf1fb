/*
distribution.go - Allocating the shared pools among settling participants

PURPOSE:
  After credit deduction, each winner is owed chips_after_credit. That value
  is paid out of the cash pool and out of debtors' residual credit.

ELIGIBILITY:
  CREDIT_DEDUCTED, AWAITING_DISTRIBUTION, DISTRIBUTED. DONE participants are
  already paid and never re-allocated.

THREE STEPS:
  1. Suggest  - non-binding proposal, never mutates anything
  2. Override - manager's binding allocation, validated for conservation:
                  Σ cash         == cash_pool (exactly)
                  Σ credit_from  <= credit_pool + Σ credit_owed(debtors not done)
  3. Confirm  - one participant at a time: DISTRIBUTED -> DONE, then pools
                  cash_pool   -= cash
                  credit_pool += credit_owed (debtors, exactly once)
                  credit_pool -= Σ credit_from

  Override validates against POTENTIAL credit; confirm REALIZES it. A creditor
  can be paid out of a debtor's obligation before the debtor settles, and a
  debtor's credit enters the pool exactly once, at their own confirm (a
  participant reaches DONE only once).

SEE ALSO:
  - actions.go: Rendering a distribution as obligations
  - pools.go: Recovering pools if a confirm saga is interrupted
*/
package bankroll

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/shopspring/decimal"
)

// Proposal is one participant's suggested distribution.
type Proposal struct {
	Token        Token
	Name         string
	Owed         decimal.Decimal // chips_after_credit
	Distribution Distribution
}

// IsEligible reports whether a participant takes part in distribution.
func IsEligible(p *Participant) bool {
	switch p.Checkout {
	case CheckoutCreditDeducted, CheckoutAwaitingDistribution, CheckoutDistributed:
		return true
	}
	return false
}

// =============================================================================
// SUGGEST
// =============================================================================

type creditSource struct {
	token     Token
	remaining decimal.Decimal
}

// confirmedClaims sums credit already claimed against each debtor by DONE
// participants.
func confirmedClaims(participants []Participant) map[Token]decimal.Decimal {
	claims := make(map[Token]decimal.Decimal)
	for i := range participants {
		p := &participants[i]
		if p.Checkout != CheckoutDone || p.Distribution == nil {
			continue
		}
		for _, c := range p.Distribution.CreditFrom {
			claims[c.From] = claims[c.From].Add(c.Amount)
		}
	}
	return claims
}

// creditSources lists debtors with unclaimed credit. Credit from debtors who
// are already DONE sits in the credit pool, so those sources are capped by
// what the pool still holds.
func creditSources(participants []Participant, creditPool decimal.Decimal) []*creditSource {
	claims := confirmedClaims(participants)
	poolLeft := creditPool
	var sources []*creditSource
	for _, p := range sortByName(participants) {
		owed := p.CreditOwed()
		if !owed.IsPositive() {
			continue
		}
		remaining := owed.Sub(claims[p.Token])
		if p.Checkout == CheckoutDone {
			remaining = decimal.Min(remaining, poolLeft)
			poolLeft = poolLeft.Sub(decimal.Max(remaining, decimal.Zero))
		}
		if remaining.IsPositive() {
			sources = append(sources, &creditSource{token: p.Token, remaining: remaining})
		}
	}
	return sources
}

// wantedCash is how much of value the participant would like in cash.
// No stated preference means all cash.
func wantedCash(p *Participant, value decimal.Decimal) decimal.Decimal {
	if p.Preference.Cash.IsZero() && p.Preference.Credit.IsZero() {
		return value
	}
	return decimal.Min(p.Preference.Cash, value)
}

// SuggestDistribution proposes a distribution for every eligible participant.
// It never proposes more cash than a participant's chips_after_credit, and
// debtors (chips_after_credit == 0) are proposed nothing. The proposal is not
// required to balance; conservation is enforced by Override.
func SuggestDistribution(participants []Participant, cashPool, creditPool decimal.Decimal) []Proposal {
	var eligible []*Participant
	for _, p := range sortByName(participants) {
		if IsEligible(p) && p.Result != nil {
			eligible = append(eligible, p)
		}
	}

	proposals := make([]Proposal, len(eligible))
	cashLeft := decimal.Max(cashPool, decimal.Zero)

	// Pass 1: cash up to each participant's preference.
	for i, p := range eligible {
		value := p.Result.ChipsAfterCredit
		cash := decimal.Min(wantedCash(p, value), cashLeft)
		cashLeft = cashLeft.Sub(cash)
		proposals[i] = Proposal{
			Token:        p.Token,
			Name:         p.Name,
			Owed:         value,
			Distribution: Distribution{Cash: cash, CreditFrom: []CreditShare{}},
		}
	}

	// Pass 2: the rest as credit from debtors.
	sources := creditSources(participants, creditPool)
	for i := range proposals {
		prop := &proposals[i]
		need := prop.Owed.Sub(prop.Distribution.Cash)
		for _, src := range sources {
			if !need.IsPositive() {
				break
			}
			if src.token == prop.Token || !src.remaining.IsPositive() {
				continue
			}
			take := decimal.Min(need, src.remaining)
			src.remaining = src.remaining.Sub(take)
			need = need.Sub(take)
			prop.Distribution.CreditFrom = append(prop.Distribution.CreditFrom, CreditShare{From: src.token, Amount: take})
		}
	}

	// Pass 3: leftover cash covers whatever credit could not.
	for i := range proposals {
		prop := &proposals[i]
		need := prop.Owed.Sub(prop.Distribution.Cash).Sub(prop.Distribution.CreditTotal())
		if !need.IsPositive() || !cashLeft.IsPositive() {
			continue
		}
		extra := decimal.Min(need, cashLeft)
		cashLeft = cashLeft.Sub(extra)
		prop.Distribution.Cash = prop.Distribution.Cash.Add(extra)
	}

	return proposals
}

// Suggest returns a non-binding distribution proposal for the session.
func (e *Engine) Suggest(ctx context.Context, sessionID SessionID) ([]Proposal, error) {
	s, err := e.Store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	participants, err := e.Store.ListParticipants(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return SuggestDistribution(participants, s.Bank.CashPool, s.Bank.CreditPool), nil
}

// =============================================================================
// OVERRIDE
// =============================================================================

// ValidateAllocation checks a manager allocation against the current pools
// without writing anything.
func ValidateAllocation(s *Session, participants []Participant, alloc map[Token]Distribution) error {
	byToken := make(map[Token]*Participant, len(participants))
	for i := range participants {
		byToken[participants[i].Token] = &participants[i]
	}

	totalCash := decimal.Zero
	totalCredit := decimal.Zero
	claims := make(map[Token]decimal.Decimal)

	for token, dist := range alloc {
		p, ok := byToken[token]
		if !ok {
			return notFound("participant", string(token))
		}
		if !IsEligible(p) {
			return invalidState(participantSubject(p), p.Checkout, "not eligible for distribution")
		}
		if dist.Cash.IsNegative() {
			return &AllocationError{Rule: fmt.Sprintf("negative cash for %s", p.Name)}
		}
		totalCash = totalCash.Add(dist.Cash)
		for _, c := range dist.CreditFrom {
			if !c.Amount.IsPositive() {
				return &AllocationError{Rule: fmt.Sprintf("non-positive credit share for %s", p.Name)}
			}
			if c.From == token {
				return &AllocationError{Rule: fmt.Sprintf("%s cannot receive credit from themselves", p.Name)}
			}
			debtor, ok := byToken[c.From]
			if !ok || !debtor.CreditOwed().IsPositive() {
				return &AllocationError{Rule: fmt.Sprintf("%s is not a debtor", c.From)}
			}
			claims[c.From] = claims[c.From].Add(c.Amount)
			totalCredit = totalCredit.Add(c.Amount)
		}
	}

	if !totalCash.Equal(s.Bank.CashPool) {
		return &AllocationError{
			Rule:     "total cash must equal the cash pool",
			Expected: s.Bank.CashPool.String(),
			Actual:   totalCash.String(),
		}
	}

	available := s.Bank.CreditPool
	for i := range participants {
		if participants[i].Checkout != CheckoutDone {
			available = available.Add(participants[i].CreditOwed())
		}
	}
	if totalCredit.GreaterThan(available) {
		return &AllocationError{
			Rule:     "total credit exceeds available credit",
			Expected: "<= " + available.String(),
			Actual:   totalCredit.String(),
		}
	}

	confirmed := confirmedClaims(participants)
	for from, claimed := range claims {
		debtor := byToken[from]
		if claimed.Add(confirmed[from]).GreaterThan(debtor.CreditOwed()) {
			return &AllocationError{
				Rule:     fmt.Sprintf("credit claimed from %s exceeds what they owe", debtor.Name),
				Expected: "<= " + debtor.CreditOwed().Sub(confirmed[from]).String(),
				Actual:   claimed.String(),
			}
		}
	}
	return nil
}

// Override applies the manager's binding allocation. Nothing is written
// unless the whole allocation passes ValidateAllocation.
func (e *Engine) Override(ctx context.Context, sessionID SessionID, alloc map[Token]Distribution) ([]Participant, error) {
	s, err := e.session(ctx, sessionID, SessionAccepting, SessionSettling)
	if err != nil {
		return nil, err
	}
	participants, err := e.Store.ListParticipants(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := ValidateAllocation(s, participants, alloc); err != nil {
		return nil, err
	}

	tokens := make([]Token, 0, len(alloc))
	for t := range alloc {
		tokens = append(tokens, t)
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i] < tokens[j] })

	updated := make([]Participant, 0, len(tokens))
	for _, token := range tokens {
		dist := alloc[token]
		if dist.CreditFrom == nil {
			dist.CreditFrom = []CreditShare{}
		}
		p, err := e.Store.UpdateParticipant(ctx, sessionID, token, func(p *Participant) error {
			if !IsEligible(p) {
				return invalidState(participantSubject(p), p.Checkout, "not eligible for distribution")
			}
			d := dist
			p.Distribution = &d
			return advance(p, CheckoutDistributed)
		})
		if err != nil {
			// Earlier participants keep their new distribution; re-issuing
			// the override is safe because DISTRIBUTED may be re-overridden.
			log.Printf("[Engine] session %s: override stopped at %s: %v", sessionID, token, err)
			return nil, err
		}
		updated = append(updated, *p)
		e.notify(ctx, sessionID, token, NotifyDistributed, "",
			"Your payout is ready: %s cash, %s credit", dist.Cash, dist.CreditTotal())
	}
	return updated, nil
}

// =============================================================================
// CONFIRM
// =============================================================================

// Confirm finalizes one participant's distribution and realizes it against
// the session pools.
func (e *Engine) Confirm(ctx context.Context, sessionID SessionID, token Token) (*Participant, error) {
	if _, err := e.session(ctx, sessionID, SessionAccepting, SessionSettling); err != nil {
		return nil, err
	}
	now := e.Now()
	p, err := e.Store.UpdateParticipant(ctx, sessionID, token, func(p *Participant) error {
		if p.Checkout != CheckoutDistributed {
			return invalidState(participantSubject(p), p.Checkout, "distribution not set")
		}
		if err := advance(p, CheckoutDone); err != nil {
			return err
		}
		p.CheckedOut = true
		p.CheckedOutAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Saga step two. If this fails the participant is DONE but the pools are
	// stale; ReconcilePools re-derives them.
	if _, err := e.adjustBank(ctx, sessionID, payoutDelta(*p.Distribution, p.CreditOwed())); err != nil {
		log.Printf("[Engine] session %s: %s confirmed but pools not updated: %v", sessionID, p.Name, err)
		return nil, fmt.Errorf("participant confirmed but pools not updated: %w", err)
	}

	e.notify(ctx, sessionID, token, NotifyCheckoutDone, "", "Checkout confirmed")
	return p, nil
}
