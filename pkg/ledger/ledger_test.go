package ledger

import (
	"path/filepath"
	"testing"

	"chatledger/pkg/bus"
	"chatledger/pkg/logger"
	"chatledger/pkg/models"
	"chatledger/pkg/store"
)

func init() { logger.Init("error") }

func newTestLedger(t *testing.T, defaults map[string]float64) (*Ledger, *store.KV, *bus.Bus) {
	t.Helper()
	kv, err := store.Open(filepath.Join(t.TempDir(), "db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = kv.Close() })
	hub := bus.New()
	return New(kv, hub, "owner1", defaults), kv, hub
}

func TestBalanceEqualsSumOfAppliedDeltas(t *testing.T) {
	l, _, _ := newTestLedger(t, map[string]float64{"token": 0})

	if err := l.Credit("token", 5); err != nil {
		t.Fatalf("Credit: %v", err)
	}
	if err := l.Credit("token", 2.5); err != nil {
		t.Fatalf("Credit: %v", err)
	}
	if !l.Debit("token", 3, "prompt") {
		t.Fatalf("Debit should succeed")
	}
	if got := l.GetBalance("token"); got != 4.5 {
		t.Fatalf("expected 4.5, got %v", got)
	}
}

func TestDebitInsufficientLeavesBalanceUnchanged(t *testing.T) {
	l, _, _ := newTestLedger(t, map[string]float64{"token": 0.05})
	if l.Debit("token", 0.1, "prompt") {
		t.Fatalf("Debit should fail on insufficient balance")
	}
	if got := l.GetBalance("token"); got != 0.05 {
		t.Fatalf("balance mutated: %v", got)
	}
}

func TestNonPositiveAmountsRejected(t *testing.T) {
	l, _, _ := newTestLedger(t, map[string]float64{"token": 10})

	if l.Debit("token", 0, "prompt") {
		t.Fatalf("debit(0) should fail")
	}
	if l.Debit("token", -5, "prompt") {
		t.Fatalf("debit(-5) should fail")
	}
	if err := l.Credit("token", 0); err != ErrInvalidAmount {
		t.Fatalf("credit(0): expected ErrInvalidAmount, got %v", err)
	}
	if err := l.Credit("token", -1); err != ErrInvalidAmount {
		t.Fatalf("credit(-1): expected ErrInvalidAmount, got %v", err)
	}
	if err := l.SetBalance("token", -1); err != ErrInvalidAmount {
		t.Fatalf("setBalance(-1): expected ErrInvalidAmount, got %v", err)
	}
	if got := l.GetBalance("token"); got != 10 {
		t.Fatalf("balance mutated by rejected operations: %v", got)
	}
}

func TestDebitPublishesBalanceAndTransactionEvents(t *testing.T) {
	l, _, hub := newTestLedger(t, map[string]float64{"token": 10})

	var balances []float64
	var txs []models.TransactionRecorded
	bus.Subscribe(hub, bus.BalanceChanged, func(e models.BalanceChanged) { balances = append(balances, e.Balance) })
	bus.Subscribe(hub, bus.TransactionRecorded, func(e models.TransactionRecorded) { txs = append(txs, e) })

	if !l.Debit("token", 4, "generation") {
		t.Fatalf("Debit failed")
	}
	if len(balances) != 1 || balances[0] != 6 {
		t.Fatalf("expected one balance event with 6, got %v", balances)
	}
	if len(txs) != 1 || txs[0].Amount != 4 || txs[0].Reason != "generation" {
		t.Fatalf("unexpected transaction events: %+v", txs)
	}
}

func TestBalancePersistsAcrossReload(t *testing.T) {
	kv, err := store.Open(filepath.Join(t.TempDir(), "db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer kv.Close()
	hub := bus.New()

	l := New(kv, hub, "owner1", map[string]float64{"token": 10})
	if !l.Debit("token", 3, "prompt") {
		t.Fatalf("Debit failed")
	}

	l2 := New(kv, hub, "owner1", map[string]float64{"token": 10})
	if got := l2.GetBalance("token"); got != 7 {
		t.Fatalf("expected persisted 7, got %v", got)
	}
}

func TestOwnerSwitchScopesBalances(t *testing.T) {
	l, _, _ := newTestLedger(t, map[string]float64{"token": 10})

	if !l.Debit("token", 8, "generation") {
		t.Fatalf("Debit failed")
	}
	if got := l.GetBalance("token"); got != 2 {
		t.Fatalf("expected 2, got %v", got)
	}

	// new owner starts from the default, not the previous owner's value
	l.SetOwner("owner2")
	if got := l.GetBalance("token"); got != 10 {
		t.Fatalf("expected fresh default 10 for owner2, got %v", got)
	}

	// switching back restores the first owner's persisted balance
	l.SetOwner("owner1")
	if got := l.GetBalance("token"); got != 2 {
		t.Fatalf("expected owner1's 2 after switch back, got %v", got)
	}
}

func TestResetRestoresDefaults(t *testing.T) {
	l, _, _ := newTestLedger(t, map[string]float64{"token": 10, "coin": 3})
	if !l.Debit("token", 9, "prompt") {
		t.Fatalf("Debit failed")
	}
	l.Reset()
	if got := l.GetBalance("token"); got != 10 {
		t.Fatalf("expected token reset to 10, got %v", got)
	}
	if got := l.GetBalance("coin"); got != 3 {
		t.Fatalf("expected coin reset to 3, got %v", got)
	}
}
