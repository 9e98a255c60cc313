package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Provider error codes defined by EIP-1193 and EIP-3326.
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeUnsupportedMethod = 4200
	CodeDisconnected      = 4900
	CodeUnrecognizedChain = 4902
)

const (
	EventAccountsChanged = "accountsChanged"
	EventChainChanged    = "chainChanged"
)

// Requester is the request half of a provider. The network policy and the
// contract gateway only need this.
type Requester interface {
	Request(ctx context.Context, method string, params ...any) (json.RawMessage, error)
}

// Provider is an injected wallet: JSON-RPC requests, change notifications and
// the capability flags the wallet advertises about itself.
type Provider interface {
	Requester
	// On registers fn for event and returns a func that removes it.
	On(event string, fn Listener) (unsubscribe func())
	Capabilities() Capabilities
}

type Listener func(Event)

// Event is a provider notification. Accounts is set for accountsChanged,
// ChainID (hex) for chainChanged.
type Event struct {
	Name     string
	Accounts []string
	ChainID  string
}

// Capabilities mirrors the isXxx flags wallets set on the injected object.
type Capabilities struct {
	IsMetaMask       bool
	IsCoinbaseWallet bool
	IsBraveWallet    bool
	IsTrust          bool
	IsRabby          bool
}

// RPCError is an error object returned by a provider request.
type RPCError struct {
	Code    int
	Message string
	Data    any
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("wallet rpc error %d: %s", e.Code, e.Message)
}

// ErrorCode returns the provider error code of err, or 0 when err is not an
// *RPCError.
func ErrorCode(err error) int {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr.Code
	}
	return 0
}
