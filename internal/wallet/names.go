package wallet

import "strings"

// NameResolver returns a display name for an address, or "" if none.
type NameResolver interface {
	LookupName(address string) string
}

// StaticNames stands in for ENS reverse resolution. Keys are lower-cased
// addresses.
type StaticNames map[string]string

func (n StaticNames) LookupName(address string) string {
	return n[strings.ToLower(address)]
}

// DefaultNames is the lookup table used when no resolver is configured.
var DefaultNames = StaticNames{
	"0x742d35cc6634c0532925a3b844bc454e4438f44e": "alice.bdag",
	"0x8ba1f109551bd432803012645ac136ddd64dba72": "bob.bdag",
	"0xab5801a7d398351b8be11c439e05c5b3259aec9b": "carol.bdag",
	"0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266": "deployer.bdag",
}
