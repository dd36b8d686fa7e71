package wallet

import (
	"errors"
	"strings"
	"sync"

	"chatledger/pkg/bus"
	"chatledger/pkg/logger"
	"chatledger/pkg/models"
	"chatledger/pkg/store"
)

// AnonymousOwner namespaces balances and chats when no wallet is
// connected.
const AnonymousOwner = "anonymous"

const addressKey = "wallet:address"

var ErrEmptyAddress = errors.New("empty wallet address")

// Registry tracks the current owner identity (the connected wallet
// address, or the anonymous default) and broadcasts changes so the
// ledger and chat store can rescope their persistence. It owns only the
// wallet:address key; per-owner data is never touched here.
type Registry struct {
	mu    sync.Mutex
	kv    *store.KV
	hub   *bus.Bus
	owner string
}

// New restores the persisted wallet address, if any.
func New(kv *store.KV, hub *bus.Bus) *Registry {
	r := &Registry{kv: kv, hub: hub, owner: AnonymousOwner}
	var addr string
	if kv.Get(addressKey, &addr) && addr != "" {
		r.owner = addr
	}
	return r
}

// Owner returns the current owner identity.
func (r *Registry) Owner() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.owner
}

// Connect switches the owner identity to the given wallet address and
// persists it. Publishes owner-changed so dependents reload their
// per-owner state.
func (r *Registry) Connect(address string) error {
	address = strings.TrimSpace(address)
	if address == "" {
		return ErrEmptyAddress
	}
	r.mu.Lock()
	prev := r.owner
	if address == prev {
		r.mu.Unlock()
		return nil
	}
	r.owner = address
	r.kv.Put(addressKey, address)
	r.mu.Unlock()

	logger.Info("wallet_connected", "owner", address)
	bus.Publish(r.hub, bus.OwnerChanged, models.OwnerChanged{PrevOwner: prev, NewOwner: address})
	return nil
}

// Disconnect reverts to the anonymous owner. Only the stored address
// key is cleared; the disconnecting owner's persisted balances and
// chats stay intact for the next connect.
func (r *Registry) Disconnect() {
	r.mu.Lock()
	prev := r.owner
	if prev == AnonymousOwner {
		r.mu.Unlock()
		return
	}
	r.owner = AnonymousOwner
	r.kv.Delete(addressKey)
	r.mu.Unlock()

	logger.Info("wallet_disconnected", "prev", prev)
	bus.Publish(r.hub, bus.OwnerChanged, models.OwnerChanged{PrevOwner: prev, NewOwner: AnonymousOwner})
}
