package wallet

import "strings"

type Kind string

const (
	KindDefault  Kind = "default"
	KindMetaMask Kind = "metamask"
	KindCoinbase Kind = "coinbase"
	KindBrave    Kind = "brave"
	KindTrust    Kind = "trust"
	KindRabby    Kind = "rabby"
)

// Injected is what the host exposes as the wallet object. Multi-wallet
// setups list every wallet in Providers; single-wallet setups only set
// Primary.
type Injected struct {
	Primary   Provider
	Providers []Provider
}

var kindPredicates = []struct {
	kind  Kind
	match func(Capabilities) bool
}{
	// Brave and Rabby also set IsMetaMask for compatibility, so MetaMask
	// must not match them.
	{KindMetaMask, func(c Capabilities) bool { return c.IsMetaMask && !c.IsBraveWallet && !c.IsRabby }},
	{KindCoinbase, func(c Capabilities) bool { return c.IsCoinbaseWallet }},
	{KindBrave, func(c Capabilities) bool { return c.IsBraveWallet }},
	{KindTrust, func(c Capabilities) bool { return c.IsTrust }},
	{KindRabby, func(c Capabilities) bool { return c.IsRabby }},
}

// ParseKind maps user input to a Kind. Anything unrecognised is KindDefault.
func ParseKind(s string) Kind {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if predicateFor(k) != nil {
		return k
	}
	return KindDefault
}

func predicateFor(k Kind) func(Capabilities) bool {
	for _, p := range kindPredicates {
		if p.kind == k {
			return p.match
		}
	}
	return nil
}

func (in *Injected) candidates() []Provider {
	if in == nil {
		return nil
	}
	if len(in.Providers) > 0 {
		return in.Providers
	}
	if in.Primary != nil {
		return []Provider{in.Primary}
	}
	return nil
}

// Select resolves the provider for kind. The first matching provider in
// enumeration order wins. A known kind that is not installed fails with
// *WalletNotFoundError; the default kind takes whatever is present.
func Select(in *Injected, kind Kind) (Provider, error) {
	cands := in.candidates()
	if len(cands) == 0 {
		return nil, ErrNoProvider
	}

	match := predicateFor(kind)
	if match == nil {
		if in.Primary != nil {
			return in.Primary, nil
		}
		return cands[0], nil
	}

	for _, p := range cands {
		if match(p.Capabilities()) {
			return p, nil
		}
	}
	return nil, &WalletNotFoundError{Kind: kind}
}

// Detect lists the wallet kinds available, in predicate order.
func Detect(in *Injected) []Kind {
	var kinds []Kind
	for _, pred := range kindPredicates {
		for _, p := range in.candidates() {
			if pred.match(p.Capabilities()) {
				kinds = append(kinds, pred.kind)
				break
			}
		}
	}
	return kinds
}
