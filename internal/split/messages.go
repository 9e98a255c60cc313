package split

import (
	"errors"
	"fmt"

	"github.com/susu3304/dagsplit/internal/contracts"
	"github.com/susu3304/dagsplit/internal/mirror"
	"github.com/susu3304/dagsplit/internal/network"
	"github.com/susu3304/dagsplit/internal/wallet"
)

// Message maps an error to the line shown to the user. switchNetwork
// reports whether offering a network switch would resolve it.
func Message(err error) (msg string, switchNetwork bool) {
	var (
		notFound    *wallet.WalletNotFoundError
		wrong       *network.WrongNetworkError
		unsupported *network.ChainSwitchUnsupportedError
		unknown     *contracts.UnknownContractError
		failed      *contracts.TransactionFailedError
		apiErr      *mirror.APIError
	)

	switch {
	case err == nil:
		return "", false
	case errors.Is(err, wallet.ErrNoProvider):
		return "No wallet found. Install a browser wallet such as MetaMask to continue.", false
	case errors.As(err, &notFound):
		return fmt.Sprintf("The %s wallet is not installed.", notFound.Kind), false
	case errors.Is(err, wallet.ErrUserRejected):
		return "The request was rejected in your wallet.", false
	case errors.Is(err, wallet.ErrNoAccounts):
		return "Your wallet did not share any account.", false
	case errors.Is(err, wallet.ErrSessionReplaced):
		return "The connection attempt was superseded.", false
	case errors.Is(err, wallet.ErrNotConnected):
		return "Connect your wallet first.", false
	case errors.As(err, &wrong):
		return fmt.Sprintf("Wrong network. Switch to %s (chain %d).", wrong.Want.Name, wrong.Want.ChainID), true
	case errors.As(err, &unsupported):
		if unsupported.Added {
			return fmt.Sprintf("Chain %d was added to your wallet. Switch to it and try again.", unsupported.ChainID), true
		}
		return fmt.Sprintf("Your wallet does not know chain %d. Add it manually.", unsupported.ChainID), false
	case errors.As(err, &unknown):
		return fmt.Sprintf("Contract %q is not part of this deployment.", unknown.Name), false
	case errors.Is(err, contracts.ErrNotDeployed):
		return "That contract is not deployed on this network.", false
	case errors.Is(err, ErrInvalidAmount):
		return "Enter an amount greater than zero.", false
	case errors.As(err, &failed):
		if errors.Is(err, contracts.ErrReverted) {
			return fmt.Sprintf("The %s transaction reverted.", failed.Method), false
		}
		return fmt.Sprintf("The %s transaction failed: %v", failed.Method, failed.Err), false
	case errors.As(err, &apiErr):
		return fmt.Sprintf("The ledger service answered: %s", apiErr.Message), false
	default:
		return fmt.Sprintf("Something went wrong: %v", err), false
	}
}
