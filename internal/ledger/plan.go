package ledger

import (
	"sort"

	"github.com/shopspring/decimal"
)

// divisionPrecision matches the 18 decimals of the native currency.
const divisionPrecision = 18

// EqualSplit returns the balance change of every member when payer pays
// amount on behalf of members in equal shares. Deltas always sum to zero;
// the last member absorbs the rounding remainder.
func EqualSplit(amount decimal.Decimal, payer string, members []string) map[string]decimal.Decimal {
	deltas := make(map[string]decimal.Decimal, len(members)+1)
	if len(members) == 0 {
		return deltas
	}
	share := amount.DivRound(decimal.NewFromInt(int64(len(members))), divisionPrecision)
	allocated := decimal.Zero
	for i, m := range members {
		s := share
		if i == len(members)-1 {
			s = amount.Sub(allocated)
		}
		allocated = allocated.Add(s)
		deltas[m] = deltas[m].Sub(s)
	}
	deltas[payer] = deltas[payer].Add(amount)
	return deltas
}

// Plan turns net balances into transfers from debtors to creditors. The
// largest creditor is matched with the largest debtor until both sides are
// exhausted, which keeps the number of transfers small.
func Plan(balances []Balance) []Transfer {
	type bal struct {
		member string
		net    decimal.Decimal
	}
	var pos, neg []bal
	for _, b := range balances {
		switch {
		case b.Amount.IsPositive():
			pos = append(pos, bal{member: b.Member, net: b.Amount})
		case b.Amount.IsNegative():
			neg = append(neg, bal{member: b.Member, net: b.Amount.Neg()})
		}
	}
	byNet := func(s []bal) func(i, j int) bool {
		return func(i, j int) bool {
			if c := s[i].net.Cmp(s[j].net); c != 0 {
				return c > 0
			}
			return s[i].member < s[j].member
		}
	}
	sort.Slice(pos, byNet(pos))
	sort.Slice(neg, byNet(neg))

	var transfers []Transfer
	i, j := 0, 0
	for i < len(pos) && j < len(neg) {
		c := pos[i]
		d := neg[j]
		amt := decimal.Min(c.net, d.net)
		if amt.IsPositive() {
			transfers = append(transfers, Transfer{From: d.member, To: c.member, Amount: amt})
		}
		c.net = c.net.Sub(amt)
		d.net = d.net.Sub(amt)
		if c.net.IsPositive() {
			pos[i] = c
		} else {
			i++
		}
		if d.net.IsPositive() {
			neg[j] = d
		} else {
			j++
		}
	}
	return transfers
}
