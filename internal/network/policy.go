package network

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	log "github.com/sirupsen/logrus"

	"github.com/susu3304/dagsplit/internal/wallet"
)

var (
	ErrWrongNetwork           = errors.New("wrong network")
	ErrChainSwitchUnsupported = errors.New("chain unknown to wallet")
)

type WrongNetworkError struct {
	ChainID uint64
	Want    Descriptor
}

func (e *WrongNetworkError) Error() string {
	return fmt.Sprintf("connected to chain %d, switch to %s (%d)", e.ChainID, e.Want.Name, e.Want.ChainID)
}

func (e *WrongNetworkError) Is(target error) bool {
	return target == ErrWrongNetwork
}

// ChainSwitchUnsupportedError is returned when the wallet did not know the
// chain. Added reports whether the chain was added in the meantime, in which
// case switching again should succeed.
type ChainSwitchUnsupportedError struct {
	ChainID uint64
	Added   bool
	Err     error
}

func (e *ChainSwitchUnsupportedError) Error() string {
	return fmt.Sprintf("switch to chain %d: %v", e.ChainID, e.Err)
}

func (e *ChainSwitchUnsupportedError) Unwrap() error {
	return e.Err
}

func (e *ChainSwitchUnsupportedError) Is(target error) bool {
	return target == ErrChainSwitchUnsupported
}

type Policy struct {
	target Descriptor
}

func NewPolicy(target Descriptor) *Policy {
	return &Policy{target: target}
}

func (p *Policy) Target() Descriptor {
	return p.target
}

func (p *Policy) IsCorrectNetwork(chainID uint64) bool {
	return chainID == p.target.ChainID
}

// Check returns a *WrongNetworkError unless chainID is the target chain.
func (p *Policy) Check(chainID uint64) error {
	if p.IsCorrectNetwork(chainID) {
		return nil
	}
	return &WrongNetworkError{ChainID: chainID, Want: p.target}
}

// SwitchNetwork asks the wallet to move to chainID. If the wallet does not
// know the chain it is added once and the original error is still returned;
// the caller decides whether to switch again.
func (p *Policy) SwitchNetwork(ctx context.Context, r wallet.Requester, chainID uint64) error {
	if r == nil {
		return wallet.ErrNotConnected
	}

	_, err := r.Request(ctx, "wallet_switchEthereumChain", map[string]string{
		"chainId": hexutil.EncodeUint64(chainID),
	})
	if err == nil {
		return nil
	}
	if wallet.ErrorCode(err) != wallet.CodeUnrecognizedChain {
		return wallet.NormalizeError("switch network", err)
	}

	unsupported := &ChainSwitchUnsupportedError{ChainID: chainID, Err: err}
	desc, ok := Lookup(chainID)
	if !ok {
		return unsupported
	}
	if _, addErr := r.Request(ctx, "wallet_addEthereumChain", desc.AddChainParams()); addErr != nil {
		log.WithError(addErr).WithField("chain", chainID).Warn("failed to add chain to wallet")
		return unsupported
	}
	unsupported.Added = true
	return unsupported
}

// SwitchToTarget is SwitchNetwork for the configured target chain.
func (p *Policy) SwitchToTarget(ctx context.Context, r wallet.Requester) error {
	return p.SwitchNetwork(ctx, r, p.target.ChainID)
}
