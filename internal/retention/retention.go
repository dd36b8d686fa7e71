package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"

	"chatledger/pkg/chat"
	"chatledger/pkg/config"
	"chatledger/pkg/logger"
)

// Runner purges soft-deleted chat threads whose tombstones are older
// than the configured period, on a cron schedule.
type Runner struct {
	chats *chat.Store
	cfg   config.RetentionConfig
}

func New(chats *chat.Store, cfg config.RetentionConfig) *Runner {
	return &Runner{chats: chats, cfg: cfg}
}

// Start launches the scheduler if retention is enabled. Returns a
// cancel func; a disabled runner returns a no-op cancel.
func (r *Runner) Start(ctx context.Context) (context.CancelFunc, error) {
	if !r.cfg.Enabled {
		logger.Info("retention_disabled")
		return func() {}, nil
	}

	cronExpr := r.cfg.Cron
	if cronExpr == "" {
		cronExpr = "0 2 * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("retention_invalid_cron", "cron", r.cfg.Cron)
		return nil, fmt.Errorf("invalid retention cron expression: %s", r.cfg.Cron)
	}

	logger.Info("retention_enabled", "cron", cronExpr, "period", r.cfg.Period.Std().String(), "dry_run", r.cfg.DryRun)
	ctx2, cancel := context.WithCancel(ctx)
	go r.runScheduler(ctx2, cronExpr)
	return cancel, nil
}

// RunOnce performs a single purge pass. Exposed for tests and admin
// triggers.
func (r *Runner) RunOnce() []string {
	purged := r.chats.PurgeTombstones(r.cfg.Period.Std(), r.cfg.DryRun)
	if len(purged) > 0 {
		logger.Info("retention_purged", "count", len(purged), "dry_run", r.cfg.DryRun)
	}
	return purged
}

// runScheduler computes the next cron tick with gronx and sleeps until
// then, which supports full cron syntax with sharp scheduling.
func (r *Runner) runScheduler(ctx context.Context, cronExpr string) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("retention_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case <-time.After(time.Until(next)):
			r.RunOnce()
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		}
	}
}
