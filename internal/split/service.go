// Package split wires the wallet session, network policy, contract gateway
// and ledger mirror into the user-facing expense operations.
package split

import (
	"context"
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/susu3304/dagsplit/internal/contracts"
	"github.com/susu3304/dagsplit/internal/ledger"
	"github.com/susu3304/dagsplit/internal/network"
	"github.com/susu3304/dagsplit/internal/wallet"
)

// Decimals is the unit scale used to convert amounts to on-chain integers.
const Decimals = 18

var ErrInvalidAmount = errors.New("amount must be positive")

// ErrNoGroupID is reported as MirrorErr when a createGroup receipt carries
// no GroupCreated event; such groups are not mirrored.
var ErrNoGroupID = errors.New("receipt has no GroupCreated event")

// Mirror is the subset of the mirror client the service writes through.
type Mirror interface {
	CreateGroup(ctx context.Context, g ledger.NewGroup) (*ledger.Group, error)
	AddExpense(ctx context.Context, e ledger.NewExpense) (*ledger.Expense, error)
	RecordSettlement(ctx context.Context, s ledger.NewSettlement) (*ledger.Settlement, error)
}

type Service struct {
	session *wallet.Session
	policy  *network.Policy
	gateway *contracts.Gateway
	mirror  Mirror
	log     *log.Entry
}

// New returns a Service. mirror may be nil, in which case nothing is mirrored.
func New(session *wallet.Session, policy *network.Policy, gateway *contracts.Gateway, mirror Mirror) *Service {
	return &Service{
		session: session,
		policy:  policy,
		gateway: gateway,
		mirror:  mirror,
		log:     log.WithField("component", "split"),
	}
}

type GroupResult struct {
	GroupID *big.Int
	Receipt *contracts.Receipt
	Group   *ledger.Group
	// MirrorErr is set when the on-chain write succeeded but mirroring did not.
	MirrorErr error
}

type ExpenseResult struct {
	Receipt   *contracts.Receipt
	Expense   *ledger.Expense
	MirrorErr error
}

type SettlementResult struct {
	Receipt    *contracts.Receipt
	Settlement *ledger.Settlement
	MirrorErr  error
}

type ExpenseInput struct {
	GroupID     *big.Int
	Amount      decimal.Decimal
	Token       common.Address
	Description string
}

type SettleInput struct {
	GroupID  *big.Int
	Creditor common.Address
	Amount   decimal.Decimal
	Token    common.Address
}

func (s *Service) CreateGroup(ctx context.Context, name string, members []common.Address) (*GroupResult, error) {
	res, err := s.gateway.CreateGroup(ctx, name, members)
	if err != nil {
		return nil, err
	}
	out := &GroupResult{GroupID: res.GroupID, Receipt: res.Receipt}
	if s.mirror == nil {
		return out, nil
	}
	if res.GroupID == nil {
		out.MirrorErr = ErrNoGroupID
		s.logMirror("createGroup", out.MirrorErr)
		return out, nil
	}

	g := ledger.NewGroup{
		ID:      res.GroupID.String(),
		Name:    name,
		Creator: res.Receipt.From.Hex(),
		TxHash:  res.Receipt.TxHash.Hex(),
	}
	for _, m := range members {
		g.Members = append(g.Members, m.Hex())
	}
	out.Group, out.MirrorErr = s.mirror.CreateGroup(ctx, g)
	s.logMirror("createGroup", out.MirrorErr)
	return out, nil
}

func (s *Service) AddExpense(ctx context.Context, in ExpenseInput) (*ExpenseResult, error) {
	wei, err := toWei(in.Amount)
	if err != nil {
		return nil, err
	}
	receipt, err := s.gateway.AddExpense(ctx, in.GroupID, wei, in.Token, in.Description)
	if err != nil {
		return nil, err
	}
	out := &ExpenseResult{Receipt: receipt}
	if s.mirror == nil {
		return out, nil
	}

	out.Expense, out.MirrorErr = s.mirror.AddExpense(ctx, ledger.NewExpense{
		GroupID:     in.GroupID.String(),
		Payer:       receipt.From.Hex(),
		Amount:      in.Amount,
		Token:       tokenString(in.Token),
		Description: in.Description,
		TxHash:      receipt.TxHash.Hex(),
	})
	s.logMirror("addExpense", out.MirrorErr)
	return out, nil
}

func (s *Service) SettleDebt(ctx context.Context, in SettleInput) (*SettlementResult, error) {
	wei, err := toWei(in.Amount)
	if err != nil {
		return nil, err
	}
	receipt, err := s.gateway.SettleDebt(ctx, in.GroupID, in.Creditor, wei, in.Token)
	if err != nil {
		return nil, err
	}
	out := &SettlementResult{Receipt: receipt}
	if s.mirror == nil {
		return out, nil
	}

	out.Settlement, out.MirrorErr = s.mirror.RecordSettlement(ctx, ledger.NewSettlement{
		GroupID: in.GroupID.String(),
		Payer:   receipt.From.Hex(),
		Payee:   in.Creditor.Hex(),
		Amount:  in.Amount,
		Token:   tokenString(in.Token),
		TxHash:  receipt.TxHash.Hex(),
	})
	s.logMirror("settleDebt", out.MirrorErr)
	return out, nil
}

type Status struct {
	wallet.Info
	CorrectNetwork bool               `json:"isCorrectNetwork"`
	TokenBalance   string             `json:"tokenBalance"`
	Target         network.Descriptor `json:"target"`
}

// Status never fails; unknown parts are reported as zero values.
func (s *Service) Status(ctx context.Context) Status {
	info := s.session.Snapshot()
	st := Status{
		Info:         info,
		Target:       s.policy.Target(),
		TokenBalance: contracts.ZeroBalance,
	}
	if !info.IsConnected {
		return st
	}
	st.CorrectNetwork = s.policy.IsCorrectNetwork(info.ChainID)
	st.TokenBalance = s.gateway.GetTokenBalance(ctx, common.HexToAddress(info.Address))
	return st
}

// EnsureNetwork switches the wallet to the target chain if it is on another
// one and reloads the session afterwards.
func (s *Service) EnsureNetwork(ctx context.Context) error {
	info := s.session.Snapshot()
	if !info.IsConnected {
		return wallet.ErrNotConnected
	}
	if s.policy.IsCorrectNetwork(info.ChainID) {
		return nil
	}
	if err := s.policy.SwitchToTarget(ctx, s.session.Provider()); err != nil {
		return err
	}
	s.session.Refresh(ctx, info.Address)
	return nil
}

func (s *Service) logMirror(op string, err error) {
	if err != nil {
		s.log.WithError(err).WithField("op", op).Warn("ledger mirror write failed")
	}
}

func toWei(amount decimal.Decimal) (*big.Int, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	wei := amount.Shift(Decimals).BigInt()
	if wei.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	return wei, nil
}

func tokenString(token common.Address) string {
	if token == (common.Address{}) {
		return ledger.NativeToken
	}
	return strings.ToLower(token.Hex())
}
