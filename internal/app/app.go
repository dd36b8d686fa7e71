package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"chatledger/pkg/banner"
	"chatledger/pkg/bus"
	"chatledger/pkg/chat"
	"chatledger/pkg/config"
	"chatledger/pkg/detect"
	"chatledger/pkg/ledger"
	"chatledger/pkg/logger"
	"chatledger/pkg/metrics"
	"chatledger/pkg/models"
	"chatledger/pkg/orchestrator"
	"chatledger/pkg/store"
	"chatledger/pkg/wallet"

	iretention "chatledger/internal/retention"
)

// App wires the coordination core together and owns its lifecycle. All
// services are constructed here and injected into their consumers; no
// package-level singletons.
type App struct {
	cfg     config.Config
	version string

	kv        *store.KV
	hub       *bus.Bus
	wallets   *wallet.Registry
	balances  *ledger.Ledger
	chats     *chat.Store
	gateway   *detect.Gateway
	orch      *orchestrator.Orchestrator
	retention *iretention.Runner
}

// New opens the store and builds every service. It does not start the
// HTTP server or background tasks; call Run for those.
func New(cfg config.Config, version string) (*App, error) {
	kv, err := store.Open(cfg.Server.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", cfg.Server.DBPath, err)
	}

	if cfg.Ledger.AuditDir != "" {
		if err := logger.AttachAuditFileSink(cfg.Ledger.AuditDir); err != nil {
			logger.Warn("audit_sink_unavailable", "dir", cfg.Ledger.AuditDir, "error", err)
		}
	}

	hub := bus.New()
	wallets := wallet.New(kv, hub)
	owner := wallets.Owner()

	balances := ledger.New(kv, hub, owner, cfg.Ledger.DefaultBalances)
	chats := chat.New(kv, hub, owner, chat.Options{
		WelcomeTitle: cfg.Chat.WelcomeTitle,
		WelcomeText:  cfg.Chat.WelcomeText,
	})
	gateway := detect.New(cfg.Detection.URL, cfg.Detection.Timeout.Std(), uint64(cfg.Detection.MaxImageSize))
	orch := orchestrator.New(balances, chats, gateway, orchestrator.Pricing{
		Currency:   cfg.Pricing.Currency,
		Prompt:     cfg.Pricing.Prompt,
		Generation: cfg.Pricing.Generation,
	})

	a := &App{
		cfg:       cfg,
		version:   version,
		kv:        kv,
		hub:       hub,
		wallets:   wallets,
		balances:  balances,
		chats:     chats,
		gateway:   gateway,
		orch:      orch,
		retention: iretention.New(chats, cfg.Retention),
	}
	a.wire()

	metrics.Register(prometheus.DefaultRegisterer, kv)
	return a, nil
}

// wire connects cross-service subscriptions: owner switches rescope the
// ledger and chat store, and counters track ledger/chat activity.
func (a *App) wire() {
	bus.Subscribe(a.hub, bus.OwnerChanged, func(e models.OwnerChanged) {
		a.balances.SetOwner(e.NewOwner)
		a.chats.SetOwner(e.NewOwner)
	})
	bus.Subscribe(a.hub, bus.MessageAppended, func(e models.MessageAppended) {
		metrics.MessagesTotal.WithLabelValues(string(e.Message.Author)).Inc()
	})
	bus.Subscribe(a.hub, bus.TransactionRecorded, func(e models.TransactionRecorded) {
		metrics.TransactionsTotal.WithLabelValues(e.Reason).Inc()
	})
}

// Run starts background tasks and the HTTP server, blocking until ctx
// is canceled or a fatal server error occurs.
func (a *App) Run(ctx context.Context) error {
	a.chats.StartAutosave(ctx, a.cfg.Chat.AutosaveInterval.Std())

	stopRetention, err := a.retention.Start(ctx)
	if err != nil {
		return err
	}
	defer stopRetention()

	banner.Print(a.cfg.Addr(), a.cfg.Server.DBPath, a.cfg.Detection.URL, a.wallets.Owner(), a.version)

	errCh, httpDone := a.startHTTP(ctx)
	select {
	case <-ctx.Done():
		// Drain in-flight requests before the caller closes the store.
		<-httpDone
		return nil
	case err := <-errCh:
		return err
	}
}

// Close flushes chats and closes the store.
func (a *App) Close() error {
	a.chats.Flush()
	return a.kv.Close()
}
