package ledger

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"chatledger/pkg/bus"
	"chatledger/pkg/logger"
	"chatledger/pkg/models"
	"chatledger/pkg/store"
)

// ErrInvalidAmount rejects non-positive credit/debit amounts and
// negative balance assignments before any mutation.
var ErrInvalidAmount = errors.New("invalid amount")

// Ledger is the only authoritative mutator of an owner's balances. It
// enforces the non-negative invariant: a debit either applies fully or
// not at all, and a negative balance is never observable.
type Ledger struct {
	mu       sync.Mutex
	kv       *store.KV
	hub      *bus.Bus
	owner    string
	defaults map[string]float64
	balances map[string]float64
}

// New builds a ledger for the given owner, loading persisted balances
// lazily per currency. Unknown currencies fall back to the seeded
// default (zero if the currency is not seeded).
func New(kv *store.KV, hub *bus.Bus, owner string, defaults map[string]float64) *Ledger {
	if defaults == nil {
		defaults = map[string]float64{}
	}
	return &Ledger{
		kv:       kv,
		hub:      hub,
		owner:    owner,
		defaults: defaults,
		balances: map[string]float64{},
	}
}

func balanceKey(currency, owner string) string {
	return fmt.Sprintf("balance:%s:%s", currency, owner)
}

// Owner returns the identity the ledger is currently scoped to.
func (l *Ledger) Owner() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.owner
}

// SetOwner rescopes the ledger to a new owner identity. In-memory
// balances are dropped and reloaded from storage under the new owner's
// keys; the previous owner's persisted values are left untouched.
func (l *Ledger) SetOwner(owner string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if owner == l.owner {
		return
	}
	logger.Info("ledger_owner_changed", "prev", l.owner, "owner", owner)
	l.owner = owner
	l.balances = map[string]float64{}
}

// load returns the balance for currency, reading storage on first
// access. Caller holds l.mu.
func (l *Ledger) load(currency string) float64 {
	if b, ok := l.balances[currency]; ok {
		return b
	}
	b := l.defaults[currency]
	var stored float64
	if l.kv.Get(balanceKey(currency, l.owner), &stored) {
		b = stored
	}
	l.balances[currency] = b
	return b
}

// GetBalance returns the current balance for currency.
func (l *Ledger) GetBalance(currency string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load(currency)
}

// Credit increases the balance by amount. Amounts <= 0 are rejected
// with ErrInvalidAmount; valid amounts always succeed.
func (l *Ledger) Credit(currency string, amount float64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	next := l.load(currency) + amount
	l.apply(currency, next)
	owner := l.owner
	l.mu.Unlock()

	logger.Info("balance_credited", "owner", owner, "currency", currency, "amount", amount, "balance", next)
	bus.Publish(l.hub, bus.BalanceChanged, models.BalanceChanged{Owner: owner, Currency: currency, Balance: next})
	return nil
}

// Debit decreases the balance by amount. Returns false without mutation
// when amount <= 0 or the balance is insufficient; otherwise applies the
// full deduction, persists it, and publishes balance-changed plus a
// transaction record tagged with reason.
func (l *Ledger) Debit(currency string, amount float64, reason string) bool {
	if amount <= 0 {
		logger.Warn("debit_rejected_invalid_amount", "currency", currency, "amount", amount)
		return false
	}
	l.mu.Lock()
	cur := l.load(currency)
	if cur < amount {
		owner := l.owner
		l.mu.Unlock()
		logger.Info("debit_rejected_insufficient", "owner", owner, "currency", currency, "amount", amount, "balance", cur)
		return false
	}
	next := cur - amount
	l.apply(currency, next)
	owner := l.owner
	l.mu.Unlock()

	tx := models.TransactionRecorded{
		Owner:    owner,
		Currency: currency,
		Amount:   amount,
		Reason:   reason,
		TS:       time.Now().UTC().UnixNano(),
	}
	if logger.Audit != nil {
		logger.Audit.Info("transaction", "owner", tx.Owner, "currency", tx.Currency, "amount", tx.Amount, "reason", tx.Reason)
	}
	logger.Info("balance_debited", "owner", owner, "currency", currency, "amount", amount, "balance", next, "reason", reason)
	bus.Publish(l.hub, bus.BalanceChanged, models.BalanceChanged{Owner: owner, Currency: currency, Balance: next})
	bus.Publish(l.hub, bus.TransactionRecorded, tx)
	return true
}

// SetBalance assigns an absolute balance. Negative amounts are rejected
// with ErrInvalidAmount.
func (l *Ledger) SetBalance(currency string, amount float64) error {
	if amount < 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	l.apply(currency, amount)
	owner := l.owner
	l.mu.Unlock()

	bus.Publish(l.hub, bus.BalanceChanged, models.BalanceChanged{Owner: owner, Currency: currency, Balance: amount})
	return nil
}

// Reset restores every seeded currency to its default balance.
func (l *Ledger) Reset() {
	l.mu.Lock()
	owner := l.owner
	restored := make(map[string]float64, len(l.defaults))
	for currency, def := range l.defaults {
		l.apply(currency, def)
		restored[currency] = def
	}
	l.mu.Unlock()

	logger.Info("ledger_reset", "owner", owner)
	for currency, def := range restored {
		bus.Publish(l.hub, bus.BalanceChanged, models.BalanceChanged{Owner: owner, Currency: currency, Balance: def})
	}
}

// apply updates memory and persists. Caller holds l.mu. A persistence
// failure degrades to in-memory-only operation (already logged by the
// store), never to a caller-visible error.
func (l *Ledger) apply(currency string, next float64) {
	l.balances[currency] = next
	l.kv.Put(balanceKey(currency, l.owner), next)
}
