// Package ledger holds the mirrored group / expense / balance records and
// the settlement planner that works on them.
package ledger

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Group struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Creator       string          `json:"creator"`
	Members       []string        `json:"members"`
	TotalExpenses decimal.Decimal `json:"totalExpenses"`
	// YourBalance is relative to the member a listing was made for.
	YourBalance decimal.Decimal `json:"yourBalance"`
	TxHash      string          `json:"txHash,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

type Expense struct {
	ID          string          `json:"id"`
	GroupID     string          `json:"groupId"`
	Payer       string          `json:"payer"`
	Amount      decimal.Decimal `json:"amount"`
	Token       string          `json:"token"`
	Description string          `json:"description"`
	Timestamp   time.Time       `json:"timestamp"`
	TxHash      string          `json:"txHash,omitempty"`
}

type Settlement struct {
	ID        string          `json:"id"`
	GroupID   string          `json:"groupId"`
	Payer     string          `json:"payer"`
	Payee     string          `json:"payee"`
	Amount    decimal.Decimal `json:"amount"`
	Token     string          `json:"token"`
	Timestamp time.Time       `json:"timestamp"`
	TxHash    string          `json:"txHash,omitempty"`
}

// Balance is one member's net position in a group. Positive means the
// group owes the member.
type Balance struct {
	GroupID string          `json:"groupId"`
	Member  string          `json:"member"`
	Amount  decimal.Decimal `json:"amount"`
}

type Transfer struct {
	From   string          `json:"from"`
	To     string          `json:"to"`
	Amount decimal.Decimal `json:"amount"`
}

// NativeToken is how the mirror records native-currency amounts.
const NativeToken = "0x0000000000000000000000000000000000000000"

// NormalizeAddress lower-cases an address for storage and comparison.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// MemberSet returns creator plus members, normalized, de-duplicated and in
// first-seen order. Empty entries are dropped.
func MemberSet(creator string, members []string) []string {
	seen := make(map[string]struct{}, len(members)+1)
	out := make([]string, 0, len(members)+1)
	for _, m := range append([]string{creator}, members...) {
		m = NormalizeAddress(m)
		if m == "" {
			continue
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

// NewGroup is the mirror row written after a createGroup transaction. ID
// carries the on-chain group id when one is known.
type NewGroup struct {
	ID      string   `json:"id,omitempty"`
	Name    string   `json:"name"`
	Creator string   `json:"creator"`
	Members []string `json:"members"`
	TxHash  string   `json:"txHash,omitempty"`
}

type NewExpense struct {
	GroupID     string          `json:"groupId"`
	Payer       string          `json:"payer"`
	Amount      decimal.Decimal `json:"amount"`
	Token       string          `json:"token"`
	Description string          `json:"description"`
	TxHash      string          `json:"txHash,omitempty"`
}

type NewSettlement struct {
	GroupID string          `json:"groupId"`
	Payer   string          `json:"payer"`
	Payee   string          `json:"payee"`
	Amount  decimal.Decimal `json:"amount"`
	Token   string          `json:"token"`
	TxHash  string          `json:"txHash,omitempty"`
}
