package wallet

import (
	"errors"
	"fmt"
)

var (
	ErrNoProvider   = errors.New("no wallet provider detected")
	ErrUserRejected = errors.New("request rejected by user")
	ErrNotConnected = errors.New("wallet not connected")
	ErrNoAccounts   = errors.New("wallet returned no accounts")
	// ErrSessionReplaced is returned by a Connect whose result arrived after a
	// newer Connect or a Disconnect took over the session.
	ErrSessionReplaced = errors.New("wallet session replaced while connecting")
)

// WalletNotFoundError reports that the requested wallet kind is not installed.
type WalletNotFoundError struct {
	Kind Kind
}

func (e *WalletNotFoundError) Error() string {
	return fmt.Sprintf("%s wallet is not installed", e.Kind)
}

// NormalizeError maps a user rejection to ErrUserRejected and keeps the
// provider error reachable through errors.As.
func NormalizeError(op string, err error) error {
	if err == nil {
		return nil
	}
	if ErrorCode(err) == CodeUserRejected {
		return fmt.Errorf("%s: %w", op, errors.Join(ErrUserRejected, err))
	}
	return fmt.Errorf("%s: %w", op, err)
}
