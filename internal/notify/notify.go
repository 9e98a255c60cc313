// Package notify posts ledger mirror activity to a chat channel.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/susu3304/dagsplit/internal/ledger"
	"github.com/susu3304/dagsplit/internal/network"
	"github.com/susu3304/dagsplit/internal/wallet"
)

type Notifier interface {
	GroupCreated(ctx context.Context, g ledger.Group) error
	ExpenseAdded(ctx context.Context, e ledger.Expense) error
	SettlementRecorded(ctx context.Context, s ledger.Settlement) error
	// Reminder posts the outstanding transfers of a group.
	Reminder(ctx context.Context, g ledger.Group, transfers []ledger.Transfer) error
}

// Nop discards every notification.
type Nop struct{}

func (Nop) GroupCreated(context.Context, ledger.Group) error { return nil }

func (Nop) ExpenseAdded(context.Context, ledger.Expense) error { return nil }

func (Nop) SettlementRecorded(context.Context, ledger.Settlement) error { return nil }

func (Nop) Reminder(context.Context, ledger.Group, []ledger.Transfer) error { return nil }

// formatter renders notifications as chat text.
type formatter struct {
	names    wallet.NameResolver
	explorer network.Descriptor
}

func (f formatter) label(addr string) string {
	if name := f.names.LookupName(addr); name != "" {
		return name
	}
	if len(addr) > 10 {
		return addr[:6] + "…" + addr[len(addr)-4:]
	}
	return addr
}

func (f formatter) amount(v fmt.Stringer, token string) string {
	symbol := f.explorer.NativeCurrency.Symbol
	if token != "" && ledger.NormalizeAddress(token) != ledger.NativeToken {
		symbol = f.label(token)
	}
	return v.String() + " " + symbol
}

func (f formatter) withTx(msg, hash string) string {
	if hash == "" {
		return msg
	}
	if url := f.explorer.TxURL(hash); url != "" {
		return msg + "\n" + url
	}
	return msg
}

func (f formatter) groupCreated(g ledger.Group) string {
	members := make([]string, len(g.Members))
	for i, m := range g.Members {
		members[i] = f.label(m)
	}
	msg := fmt.Sprintf("**%s** was created by %s with %d members: %s",
		g.Name, f.label(g.Creator), len(g.Members), strings.Join(members, ", "))
	return f.withTx(msg, g.TxHash)
}

func (f formatter) expenseAdded(e ledger.Expense) string {
	msg := fmt.Sprintf("%s paid %s in group %s", f.label(e.Payer), f.amount(e.Amount, e.Token), e.GroupID)
	if e.Description != "" {
		msg += fmt.Sprintf(" for \"%s\"", e.Description)
	}
	return f.withTx(msg, e.TxHash)
}

func (f formatter) settlementRecorded(s ledger.Settlement) string {
	msg := fmt.Sprintf("%s settled %s with %s in group %s",
		f.label(s.Payer), f.amount(s.Amount, s.Token), f.label(s.Payee), s.GroupID)
	return f.withTx(msg, s.TxHash)
}

func (f formatter) reminder(g ledger.Group, transfers []ledger.Transfer) string {
	if len(transfers) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Outstanding balances in **%s**:", g.Name)
	for _, t := range transfers {
		fmt.Fprintf(&b, "\n• %s → %s: %s", f.label(t.From), f.label(t.To), f.amount(t.Amount, ""))
	}
	b.WriteString("\n\nThis message was posted automatically.")
	return b.String()
}
