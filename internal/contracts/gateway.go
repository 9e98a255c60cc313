package contracts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/susu3304/dagsplit/internal/network"
	"github.com/susu3304/dagsplit/internal/wallet"
)

// ZeroBalance is what display reads return when the balance is unknown.
const ZeroBalance = "0.0000"

var ErrReverted = errors.New("transaction reverted")

type TransactionFailedError struct {
	Method string
	Hash   common.Hash
	Err    error
}

func (e *TransactionFailedError) Error() string {
	if e.Hash == (common.Hash{}) {
		return fmt.Sprintf("%s failed: %v", e.Method, e.Err)
	}
	return fmt.Sprintf("%s failed (tx %s): %v", e.Method, e.Hash.Hex(), e.Err)
}

func (e *TransactionFailedError) Unwrap() error {
	return e.Err
}

// SessionView is the part of the wallet session the gateway reads.
type SessionView interface {
	Snapshot() wallet.Info
	Provider() wallet.Provider
}

type Receipt struct {
	TxHash      common.Hash    `json:"transactionHash"`
	BlockNumber hexutil.Uint64 `json:"blockNumber"`
	Status      hexutil.Uint64 `json:"status"`
	GasUsed     hexutil.Uint64 `json:"gasUsed"`
	Logs        []Log          `json:"logs"`

	// From is the account the transaction was submitted from.
	From common.Address `json:"from"`
}

type Log struct {
	Address common.Address `json:"address"`
	Topics  []common.Hash  `json:"topics"`
	Data    hexutil.Bytes  `json:"data"`
}

type GroupCreation struct {
	// GroupID is nil when the receipt carried no GroupCreated event.
	GroupID *big.Int
	Receipt *Receipt
}

type Gateway struct {
	registry *Registry
	session  SessionView
	policy   *network.Policy
	poll     time.Duration
	log      *log.Entry
}

type Option func(*Gateway)

// WithPollInterval sets how often a pending transaction's receipt is polled.
func WithPollInterval(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.poll = d
		}
	}
}

func NewGateway(registry *Registry, session SessionView, policy *network.Policy, opts ...Option) *Gateway {
	g := &Gateway{
		registry: registry,
		session:  session,
		policy:   policy,
		poll:     2 * time.Second,
		log:      log.WithField("component", "contracts"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gateway) Resolve(name string) (*Handle, error) {
	return g.registry.Resolve(name)
}

// CreateGroup submits core.createGroup and waits for it to be mined.
func (g *Gateway) CreateGroup(ctx context.Context, name string, members []common.Address) (*GroupCreation, error) {
	receipt, err := g.transact(ctx, Core, "createGroup", nil, name, members)
	if err != nil {
		return nil, err
	}
	core, err := g.registry.Resolve(string(Core))
	if err != nil {
		return nil, err
	}
	return &GroupCreation{GroupID: groupIDFromLogs(core, receipt.Logs), Receipt: receipt}, nil
}

// AddExpense records an expense. A zero token address means the native
// currency and amount is sent along as value. Tokens are not approved here.
func (g *Gateway) AddExpense(ctx context.Context, groupID, amount *big.Int, token common.Address, description string) (*Receipt, error) {
	return g.transact(ctx, Core, "addExpense", nativeValue(token, amount), groupID, amount, token, description)
}

func (g *Gateway) SettleDebt(ctx context.Context, groupID *big.Int, creditor common.Address, amount *big.Int, token common.Address) (*Receipt, error) {
	return g.transact(ctx, Core, "settleDebt", nativeValue(token, amount), groupID, creditor, amount, token)
}

// GetTokenBalance formats owner's token balance with four decimals. It
// never fails; any problem yields ZeroBalance.
func (g *Gateway) GetTokenBalance(ctx context.Context, owner common.Address) string {
	p, _, err := g.ready()
	if err != nil {
		return ZeroBalance
	}
	token, err := g.registry.Resolve(string(Token))
	if err != nil {
		g.log.WithError(err).Debug("token balance unavailable")
		return ZeroBalance
	}

	out, err := g.call(ctx, p, token, "balanceOf", owner)
	if err != nil {
		g.log.WithError(err).Debug("token balance unavailable")
		return ZeroBalance
	}
	balance, ok := out[0].(*big.Int)
	if !ok {
		return ZeroBalance
	}
	out, err = g.call(ctx, p, token, "decimals")
	if err != nil {
		g.log.WithError(err).Debug("token decimals unavailable")
		return ZeroBalance
	}
	decimals, ok := out[0].(uint8)
	if !ok {
		return ZeroBalance
	}
	return decimal.NewFromBigInt(balance, -int32(decimals)).StringFixed(4)
}

func (g *Gateway) PlatformFeeBP(ctx context.Context) (*big.Int, error) {
	out, err := g.Call(ctx, string(Core), "platformFeeBP")
	if err != nil {
		return nil, err
	}
	fee, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("platformFeeBP: unexpected result %T", out[0])
	}
	return fee, nil
}

// Call runs a read-only method of a bound contract.
func (g *Gateway) Call(ctx context.Context, name, method string, args ...any) ([]any, error) {
	p, _, err := g.ready()
	if err != nil {
		return nil, err
	}
	h, err := g.registry.Resolve(name)
	if err != nil {
		return nil, err
	}
	m, ok := h.ABI.Methods[method]
	if !ok {
		return nil, fmt.Errorf("%s has no method %q", name, method)
	}
	if !m.IsConstant() {
		return nil, fmt.Errorf("%s.%s is not a read-only method", name, method)
	}
	return g.call(ctx, p, h, method, args...)
}

// ready checks the session before any chain interaction.
func (g *Gateway) ready() (wallet.Provider, string, error) {
	info := g.session.Snapshot()
	if !info.IsConnected {
		return nil, "", wallet.ErrNotConnected
	}
	if err := g.policy.Check(info.ChainID); err != nil {
		return nil, "", err
	}
	p := g.session.Provider()
	if p == nil {
		return nil, "", wallet.ErrNotConnected
	}
	return p, info.Address, nil
}

func (g *Gateway) transact(ctx context.Context, name Name, method string, value *big.Int, args ...any) (*Receipt, error) {
	p, from, err := g.ready()
	if err != nil {
		return nil, err
	}
	h, err := g.registry.Resolve(string(name))
	if err != nil {
		return nil, err
	}
	data, err := h.ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("encode %s.%s: %w", name, method, err)
	}
	if value == nil {
		value = new(big.Int)
	}

	raw, err := p.Request(ctx, "eth_sendTransaction", map[string]string{
		"from":  from,
		"to":    h.Address.Hex(),
		"data":  hexutil.Encode(data),
		"value": hexutil.EncodeBig(value),
	})
	if err != nil {
		if wallet.ErrorCode(err) == wallet.CodeUserRejected {
			return nil, wallet.NormalizeError(method, err)
		}
		return nil, &TransactionFailedError{Method: method, Err: err}
	}
	var hash common.Hash
	if err := json.Unmarshal(raw, &hash); err != nil {
		return nil, &TransactionFailedError{Method: method, Err: fmt.Errorf("malformed tx hash: %w", err)}
	}

	logger := g.log.WithField("method", method).WithField("tx", hash.Hex())
	logger.Info("transaction submitted, waiting to be mined")

	receipt, err := g.waitMined(ctx, p, hash)
	if err != nil {
		return nil, &TransactionFailedError{Method: method, Hash: hash, Err: err}
	}
	receipt.From = common.HexToAddress(from)
	if receipt.Status == 0 {
		return receipt, &TransactionFailedError{Method: method, Hash: hash, Err: ErrReverted}
	}
	logger.WithField("block", uint64(receipt.BlockNumber)).Info("transaction mined")
	return receipt, nil
}

// waitMined polls for the receipt with no deadline of its own; only ctx or
// the transport can end the wait early.
func (g *Gateway) waitMined(ctx context.Context, r wallet.Requester, hash common.Hash) (*Receipt, error) {
	ticker := time.NewTicker(g.poll)
	defer ticker.Stop()

	for {
		raw, err := r.Request(ctx, "eth_getTransactionReceipt", hash.Hex())
		if err != nil {
			return nil, err
		}
		if len(raw) > 0 && string(raw) != "null" {
			var receipt Receipt
			if err := json.Unmarshal(raw, &receipt); err != nil {
				return nil, fmt.Errorf("malformed receipt: %w", err)
			}
			return &receipt, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (g *Gateway) call(ctx context.Context, r wallet.Requester, h *Handle, method string, args ...any) ([]any, error) {
	data, err := h.ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("encode %s.%s: %w", h.Name, method, err)
	}
	raw, err := r.Request(ctx, "eth_call", map[string]string{
		"to":   h.Address.Hex(),
		"data": hexutil.Encode(data),
	}, "latest")
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", h.Name, method, err)
	}
	var result hexutil.Bytes
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("%s.%s: malformed result: %w", h.Name, method, err)
	}
	out, err := h.ABI.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("decode %s.%s: %w", h.Name, method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s.%s returned nothing", h.Name, method)
	}
	return out, nil
}

func nativeValue(token common.Address, amount *big.Int) *big.Int {
	if token == (common.Address{}) {
		return amount
	}
	return new(big.Int)
}

func groupIDFromLogs(core *Handle, logs []Log) *big.Int {
	ev, ok := core.ABI.Events["GroupCreated"]
	if !ok {
		return nil
	}
	for _, l := range logs {
		if l.Address != core.Address || len(l.Topics) < 2 || l.Topics[0] != ev.ID {
			continue
		}
		return new(big.Int).SetBytes(l.Topics[1].Bytes())
	}
	return nil
}
