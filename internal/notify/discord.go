package notify

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/susu3304/dagsplit/internal/ledger"
	"github.com/susu3304/dagsplit/internal/network"
	"github.com/susu3304/dagsplit/internal/wallet"
)

// channelSender is the part of a discordgo session used for posting.
type channelSender interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Discord posts notifications to one channel through the bot REST API.
type Discord struct {
	session   channelSender
	channelID string
	format    formatter
}

type Option func(*Discord)

func WithNames(r wallet.NameResolver) Option {
	return func(d *Discord) { d.format.names = r }
}

// WithExplorer sets the chain used for currency symbols and transaction links.
func WithExplorer(desc network.Descriptor) Option {
	return func(d *Discord) { d.format.explorer = desc }
}

func NewDiscord(token, channelID string, opts ...Option) (*Discord, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	return newDiscord(session, channelID, opts...), nil
}

func newDiscord(session channelSender, channelID string, opts ...Option) *Discord {
	d := &Discord{
		session:   session,
		channelID: channelID,
		format:    formatter{names: wallet.DefaultNames, explorer: network.Primordial},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Discord) GroupCreated(ctx context.Context, g ledger.Group) error {
	return d.send(ctx, d.format.groupCreated(g))
}

func (d *Discord) ExpenseAdded(ctx context.Context, e ledger.Expense) error {
	return d.send(ctx, d.format.expenseAdded(e))
}

func (d *Discord) SettlementRecorded(ctx context.Context, s ledger.Settlement) error {
	return d.send(ctx, d.format.settlementRecorded(s))
}

func (d *Discord) Reminder(ctx context.Context, g ledger.Group, transfers []ledger.Transfer) error {
	return d.send(ctx, d.format.reminder(g, transfers))
}

func (d *Discord) send(ctx context.Context, content string) error {
	if content == "" {
		return nil
	}
	const attemptTimeout = 12 * time.Second
	const maxAttempts = 2

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		sendCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		_, err := d.session.ChannelMessageSend(d.channelID, content, discordgo.WithContext(sendCtx))
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isTemporaryOrTimeout(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(300+rand.Intn(500)) * time.Millisecond):
		}
	}
	return lastErr
}

func isTemporaryOrTimeout(err error) bool {
	if err == nil {
		return false
	}
	if ne, ok := err.(net.Error); ok {
		return ne.Timeout()
	}
	return false
}
