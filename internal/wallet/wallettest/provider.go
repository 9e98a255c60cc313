// Package wallettest provides a scriptable in-memory wallet provider for
// tests.
package wallettest

import (
	"context"
	"encoding/json"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/susu3304/dagsplit/internal/wallet"
)

type HandlerFunc func(ctx context.Context, params []any) (any, error)

type Call struct {
	Method string
	Params []any
}

type Provider struct {
	Caps wallet.Capabilities

	mu        sync.Mutex
	handlers  map[string]HandlerFunc
	calls     []Call
	nextID    uint64
	listeners map[string]map[uint64]wallet.Listener
}

func New(caps wallet.Capabilities) *Provider {
	return &Provider{
		Caps:      caps,
		handlers:  make(map[string]HandlerFunc),
		listeners: make(map[string]map[uint64]wallet.Listener),
	}
}

// NewWallet returns a provider that has already authorized accounts and
// sits on chainID with the given native balance.
func NewWallet(accounts []string, chainID uint64, balance *big.Int) *Provider {
	p := New(wallet.Capabilities{IsMetaMask: true})
	p.Respond("eth_requestAccounts", accounts)
	p.Respond("eth_accounts", accounts)
	p.Respond("eth_chainId", hexutil.EncodeUint64(chainID))
	p.Respond("eth_getBalance", (*hexutil.Big)(balance))
	return p
}

func (p *Provider) Handle(method string, fn HandlerFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[method] = fn
}

func (p *Provider) Respond(method string, result any) {
	p.Handle(method, func(context.Context, []any) (any, error) { return result, nil })
}

func (p *Provider) Fail(method string, err error) {
	p.Handle(method, func(context.Context, []any) (any, error) { return nil, err })
}

func (p *Provider) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	p.mu.Lock()
	p.calls = append(p.calls, Call{Method: method, Params: params})
	fn, ok := p.handlers[method]
	p.mu.Unlock()

	if !ok {
		return nil, &wallet.RPCError{Code: wallet.CodeUnsupportedMethod, Message: "unsupported method " + method}
	}
	result, err := fn(ctx, params)
	if err != nil {
		return nil, err
	}
	return json.Marshal(result)
}

func (p *Provider) On(event string, fn wallet.Listener) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	id := p.nextID
	if p.listeners[event] == nil {
		p.listeners[event] = make(map[uint64]wallet.Listener)
	}
	p.listeners[event][id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.listeners[event], id)
	}
}

func (p *Provider) Emit(ev wallet.Event) {
	p.mu.Lock()
	ids := make([]uint64, 0, len(p.listeners[ev.Name]))
	for id := range p.listeners[ev.Name] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	fns := make([]wallet.Listener, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, p.listeners[ev.Name][id])
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func (p *Provider) Capabilities() wallet.Capabilities {
	return p.Caps
}

func (p *Provider) Calls() []Call {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Call(nil), p.calls...)
}

func (p *Provider) Methods() []string {
	var out []string
	for _, c := range p.Calls() {
		out = append(out, c.Method)
	}
	return out
}

func (p *Provider) Count(method string) int {
	n := 0
	for _, c := range p.Calls() {
		if c.Method == method {
			n++
		}
	}
	return n
}

func (p *Provider) ListenerCount(event string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.listeners[event])
}

func (p *Provider) ResetCalls() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = nil
}
