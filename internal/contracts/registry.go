package contracts

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/tidwall/gjson"
)

type Name string

const (
	Core       Name = "core"
	Token      Name = "token"
	Factory    Name = "factory"
	Analytics  Name = "analytics"
	Governance Name = "governance"
	MultiToken Name = "multiToken"
)

var Names = []Name{Core, Token, Factory, Analytics, Governance, MultiToken}

var (
	ErrUnknownContract = errors.New("unknown contract")
	ErrNotDeployed     = errors.New("contract not deployed")
)

type UnknownContractError struct {
	Name string
}

func (e *UnknownContractError) Error() string {
	return fmt.Sprintf("unknown contract %q", e.Name)
}

func (e *UnknownContractError) Is(target error) bool {
	return target == ErrUnknownContract
}

// Handle binds a deployed address to the method surface declared for its
// logical name.
type Handle struct {
	Name    Name
	Address common.Address
	ABI     abi.ABI
}

func (h *Handle) Has(method string) bool {
	_, ok := h.ABI.Methods[method]
	return ok
}

func (h *Handle) Methods() []string {
	out := make([]string, 0, len(h.ABI.Methods))
	for m := range h.ABI.Methods {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Registry is the static address table from a deployment manifest.
type Registry struct {
	// ChainID is the chain the manifest was deployed to, 0 if not recorded.
	ChainID   uint64
	addresses map[Name]common.Address
}

func NewRegistry(addresses map[Name]common.Address) *Registry {
	r := &Registry{addresses: make(map[Name]common.Address, len(addresses))}
	for n, a := range addresses {
		r.addresses[n] = a
	}
	return r
}

func LoadManifest(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read deployment manifest: %w", err)
	}
	return ParseManifest(data)
}

// ParseManifest reads {"chainId": n, "contracts": {"core": "0x..", ...}}.
// Entries may also be objects with an "address" field.
func ParseManifest(data []byte) (*Registry, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("deployment manifest is not valid JSON")
	}
	doc := gjson.ParseBytes(data)
	contracts := doc.Get("contracts")
	if !contracts.IsObject() {
		return nil, errors.New("deployment manifest has no contracts object")
	}

	addresses := make(map[Name]common.Address)
	for _, name := range Names {
		entry := contracts.Get(string(name))
		if !entry.Exists() {
			continue
		}
		raw := entry.String()
		if entry.IsObject() {
			raw = entry.Get("address").String()
		}
		if !common.IsHexAddress(raw) {
			return nil, fmt.Errorf("deployment manifest: invalid address %q for %s", raw, name)
		}
		addresses[name] = common.HexToAddress(raw)
	}

	r := NewRegistry(addresses)
	r.ChainID = doc.Get("chainId").Uint()
	return r, nil
}

// Resolve looks up a logical contract name.
func (r *Registry) Resolve(name string) (*Handle, error) {
	parsed, ok := abis[Name(name)]
	if !ok {
		return nil, &UnknownContractError{Name: name}
	}
	addr, ok := r.addresses[Name(name)]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrNotDeployed)
	}
	return &Handle{Name: Name(name), Address: addr, ABI: parsed}, nil
}

func (r *Registry) Addresses() map[Name]common.Address {
	out := make(map[Name]common.Address, len(r.addresses))
	for n, a := range r.addresses {
		out[n] = a
	}
	return out
}
