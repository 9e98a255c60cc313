package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/rpc"
)

// RPCProvider is a Provider backed by a JSON-RPC node whose accounts are
// unlocked on the node side (a dev node or a signer proxy). Hosts that
// observe account or chain changes push them through Emit.
type RPCProvider struct {
	client *rpc.Client
	caps   Capabilities

	mu        sync.Mutex
	nextID    uint64
	listeners map[string]map[uint64]Listener
}

func DialRPCProvider(ctx context.Context, url string, caps Capabilities) (*RPCProvider, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial wallet rpc: %w", err)
	}
	return NewRPCProvider(client, caps), nil
}

func NewRPCProvider(client *rpc.Client, caps Capabilities) *RPCProvider {
	return &RPCProvider{
		client:    client,
		caps:      caps,
		listeners: make(map[string]map[uint64]Listener),
	}
}

func (p *RPCProvider) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	var result json.RawMessage
	if err := p.client.CallContext(ctx, &result, method, params...); err != nil {
		var rpcErr rpc.Error
		if errors.As(err, &rpcErr) {
			out := &RPCError{Code: rpcErr.ErrorCode(), Message: rpcErr.Error()}
			var dataErr rpc.DataError
			if errors.As(err, &dataErr) {
				out.Data = dataErr.ErrorData()
			}
			return nil, out
		}
		return nil, err
	}
	return result, nil
}

func (p *RPCProvider) On(event string, fn Listener) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	id := p.nextID
	if p.listeners[event] == nil {
		p.listeners[event] = make(map[uint64]Listener)
	}
	p.listeners[event][id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.listeners[event], id)
	}
}

// Emit delivers ev to the listeners registered for ev.Name, in
// registration order. Listeners may unsubscribe while being called.
func (p *RPCProvider) Emit(ev Event) {
	p.mu.Lock()
	ids := make([]uint64, 0, len(p.listeners[ev.Name]))
	for id := range p.listeners[ev.Name] {
		ids = append(ids, id)
	}
	fns := make([]Listener, 0, len(ids))
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		fns = append(fns, p.listeners[ev.Name][id])
	}
	p.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func (p *RPCProvider) Capabilities() Capabilities {
	return p.caps
}

func (p *RPCProvider) Close() {
	p.client.Close()
}
