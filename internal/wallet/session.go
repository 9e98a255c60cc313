package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Info is a point-in-time copy of the session record. Address is set iff
// IsConnected. ChainID 0 means unknown.
type Info struct {
	State       State  `json:"state"`
	IsConnected bool   `json:"isConnected"`
	Address     string `json:"address,omitempty"`
	ChainID     uint64 `json:"chainId,omitempty"`
	Balance     string `json:"balance,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

// Session owns the wallet connection. All writes to the record happen under
// mu and are discarded when the generation they were started under is no
// longer current; mu is never held across a provider request.
type Session struct {
	mu       sync.Mutex
	injected *Injected
	names    NameResolver
	log      *log.Entry

	gen      uint64
	info     Info
	provider Provider
	unsubs   []func()
}

type Option func(*Session)

func WithNames(r NameResolver) Option {
	return func(s *Session) { s.names = r }
}

func WithLogger(l *log.Entry) Option {
	return func(s *Session) { s.log = l }
}

func NewSession(injected *Injected, opts ...Option) *Session {
	s := &Session{
		injected: injected,
		names:    DefaultNames,
		log:      log.WithField("component", "wallet"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) Snapshot() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.info
}

// Provider returns the connected provider, or nil when disconnected.
func (s *Session) Provider() Provider {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.provider
}

// Connect asks the wallet of the given kind for account access. It blocks
// until the user answers the wallet prompt.
func (s *Session) Connect(ctx context.Context, kind Kind) error {
	s.mu.Lock()
	p, err := Select(s.injected, kind)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.gen++
	gen := s.gen
	s.resetLocked()
	s.info.State = Connecting
	s.mu.Unlock()

	raw, err := p.Request(ctx, "eth_requestAccounts")
	if err != nil {
		s.abandon(gen)
		return NormalizeError("request accounts", err)
	}
	accounts, err := decodeAccounts(raw)
	if err != nil {
		s.abandon(gen)
		return fmt.Errorf("request accounts: %w", err)
	}
	if len(accounts) == 0 {
		s.abandon(gen)
		return ErrNoAccounts
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return ErrSessionReplaced
	}
	s.provider = p
	s.info = Info{State: Connected, IsConnected: true, Address: accounts[0]}
	s.subscribeLocked(p, gen)
	s.mu.Unlock()

	s.log.WithField("address", accounts[0]).Info("wallet connected")
	s.Refresh(ctx, accounts[0])
	return nil
}

// Disconnect clears the session. Calling it on a cleared session is a no-op.
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	if s.info.IsConnected {
		s.log.WithField("address", s.info.Address).Info("wallet disconnected")
	}
	s.resetLocked()
}

// RestoreIfAuthorized reconnects without prompting when the wallet already
// authorizes this origin. Having no wallet at all is not an error here.
func (s *Session) RestoreIfAuthorized(ctx context.Context) error {
	s.mu.Lock()
	// A Connect in flight owns the session until it settles.
	if s.info.IsConnected || s.info.State == Connecting {
		s.mu.Unlock()
		return nil
	}
	p, err := Select(s.injected, KindDefault)
	if err != nil {
		s.mu.Unlock()
		if errors.Is(err, ErrNoProvider) {
			return nil
		}
		return err
	}
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	raw, err := p.Request(ctx, "eth_accounts")
	if err != nil {
		s.abandon(gen)
		return NormalizeError("query accounts", err)
	}
	accounts, err := decodeAccounts(raw)
	if err != nil {
		s.abandon(gen)
		return fmt.Errorf("query accounts: %w", err)
	}
	if len(accounts) == 0 {
		s.abandon(gen)
		return nil
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return nil
	}
	s.provider = p
	s.info = Info{State: Connected, IsConnected: true, Address: accounts[0]}
	s.subscribeLocked(p, gen)
	s.mu.Unlock()

	s.log.WithField("address", accounts[0]).Info("wallet session restored")
	s.Refresh(ctx, accounts[0])
	return nil
}

// Refresh reloads chain id, native balance and display name for address.
// Failures are logged and leave the record untouched.
func (s *Session) Refresh(ctx context.Context, address string) {
	s.mu.Lock()
	p, gen := s.provider, s.gen
	s.mu.Unlock()
	if p == nil {
		return
	}

	chainID, err := requestChainID(ctx, p)
	if err != nil {
		s.log.WithError(err).Warn("refresh: failed to query chain id")
		return
	}
	raw, err := p.Request(ctx, "eth_getBalance", address, "latest")
	if err != nil {
		s.log.WithError(err).Warn("refresh: failed to query balance")
		return
	}
	wei, err := decodeBig(raw)
	if err != nil {
		s.log.WithError(err).Warn("refresh: malformed balance")
		return
	}
	name := s.names.LookupName(address)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen || s.info.Address != address {
		return
	}
	s.info.ChainID = chainID
	s.info.Balance = FormatUnits(wei, 18)
	s.info.DisplayName = name
}

// SignMessage asks the wallet for a personal_sign signature of message by
// the connected account.
func (s *Session) SignMessage(ctx context.Context, message string) (string, error) {
	s.mu.Lock()
	p, address := s.provider, s.info.Address
	s.mu.Unlock()
	if p == nil {
		return "", ErrNotConnected
	}

	raw, err := p.Request(ctx, "personal_sign", hexutil.Encode([]byte(message)), address)
	if err != nil {
		return "", NormalizeError("sign message", err)
	}
	var sig string
	if err := json.Unmarshal(raw, &sig); err != nil {
		return "", fmt.Errorf("sign message: %w", err)
	}
	return sig, nil
}

func (s *Session) subscribeLocked(p Provider, gen uint64) {
	s.unsubs = append(s.unsubs,
		p.On(EventAccountsChanged, func(ev Event) { s.onAccountsChanged(gen, ev.Accounts) }),
		p.On(EventChainChanged, func(ev Event) { s.onChainChanged(gen, ev.ChainID) }),
	)
}

func (s *Session) onAccountsChanged(gen uint64, accounts []string) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	if len(accounts) == 0 {
		s.gen++
		s.resetLocked()
		s.mu.Unlock()
		s.log.Info("wallet revoked all accounts")
		return
	}
	s.info.Address = accounts[0]
	s.info.Balance = ""
	s.info.DisplayName = ""
	s.mu.Unlock()

	s.log.WithField("address", accounts[0]).Info("wallet account changed")
	s.Refresh(context.Background(), accounts[0])
}

func (s *Session) onChainChanged(gen uint64, chainHex string) {
	chainID, err := hexutil.DecodeUint64(chainHex)
	if err != nil {
		s.log.WithError(err).WithField("chain", chainHex).Warn("ignoring malformed chainChanged event")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen || !s.info.IsConnected {
		return
	}
	s.info.ChainID = chainID
}

func (s *Session) abandon(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == gen {
		s.resetLocked()
	}
}

func (s *Session) resetLocked() {
	for _, unsub := range s.unsubs {
		unsub()
	}
	s.unsubs = nil
	s.provider = nil
	s.info = Info{}
}

func decodeAccounts(raw json.RawMessage) ([]string, error) {
	var accounts []string
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

func requestChainID(ctx context.Context, r Requester) (uint64, error) {
	raw, err := r.Request(ctx, "eth_chainId")
	if err != nil {
		return 0, err
	}
	var hex string
	if err := json.Unmarshal(raw, &hex); err != nil {
		return 0, err
	}
	return hexutil.DecodeUint64(hex)
}

func decodeBig(raw json.RawMessage) (*big.Int, error) {
	var hex string
	if err := json.Unmarshal(raw, &hex); err != nil {
		return nil, err
	}
	return hexutil.DecodeBig(hex)
}

// FormatUnits renders v scaled down by 10^decimals, without trailing zeros.
func FormatUnits(v *big.Int, decimals int32) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -decimals).String()
}
