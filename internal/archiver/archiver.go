package archiver

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adhocore/gronx"
	"go.uber.org/zap"

	"explora/pkg/config"
	"explora/pkg/export"
	"explora/pkg/logger"
	"explora/pkg/models"
	"explora/pkg/store"
	"explora/pkg/telemetry"
	"explora/pkg/thread"
)

var storedEff *config.EffectiveConfigResult

// SetEffectiveConfig stores the effective config so tests (or admin triggers)
// can invoke archive runs on-demand.
func SetEffectiveConfig(eff config.EffectiveConfigResult) {
	storedEff = &eff
}

// RunImmediate triggers a single archive sweep using the stored effective
// config. Returns an error if no effective config was registered.
func RunImmediate() error {
	if storedEff == nil {
		return fmt.Errorf("no effective config registered for archive run")
	}
	return RunOnce(context.Background(), *storedEff)
}

// Start starts the archive scheduler if enabled. Returns a cancel func.
func Start(ctx context.Context, eff config.EffectiveConfigResult) (context.CancelFunc, error) {
	arc := eff.Config.Archive

	// if archiving is not enabled, return no-op cancel
	if !arc.Enabled {
		logger.Info("archiver_disabled")
		return func() {}, nil
	}

	if arc.GuideDir != "" {
		if err := os.MkdirAll(arc.GuideDir, 0o700); err != nil {
			logger.Error("archiver_guide_dir_failed", zap.String("path", arc.GuideDir), zap.Error(err))
			return nil, err
		}
	}

	// map empty cron to default daily @03:00
	cronExpr := arc.Cron
	if cronExpr == "" {
		cronExpr = "0 3 * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("archiver_invalid_cron", zap.String("cron", arc.Cron))
		return nil, fmt.Errorf("invalid archive cron expression: %s", arc.Cron)
	}

	logger.Info("archiver_enabled",
		zap.String("cron", cronExpr),
		zap.Duration("idle_period", arc.IdlePeriod.Duration()),
		zap.String("guide_dir", arc.GuideDir))
	ctx2, cancel := context.WithCancel(ctx)

	go runScheduler(ctx2, eff, cronExpr)

	logger.Info("archiver_scheduler_started")
	return cancel, nil
}

// runScheduler uses gronx to compute the next tick for the configured cron
// expression and sleeps until that time.
func runScheduler(ctx context.Context, eff config.EffectiveConfigResult, cronExpr string) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("archiver_scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("archiver_nexttick_failed", zap.String("cron", cronExpr), zap.Error(err))
			// fallback sleep then retry
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				logger.Info("archiver_scheduler_stopping")
				return
			}
			continue
		}

		wait := time.Until(next)
		if wait <= 0 {
			go func() {
				if err := RunOnce(ctx, eff); err != nil {
					logger.Error("archiver_run_error", zap.Error(err))
				}
			}()
			// small sleep to avoid tight loop
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				logger.Info("archiver_scheduler_stopping")
				return
			}
			continue
		}

		select {
		case <-time.After(wait):
			go func() {
				if err := RunOnce(ctx, eff); err != nil {
					logger.Error("archiver_run_error", zap.Error(err))
				}
			}()
		case <-ctx.Done():
			logger.Info("archiver_scheduler_stopping")
			return
		}
	}
}

// RunOnce performs a single sweep: conversations idle for longer than the
// configured period are archived and a guide snapshot is written for each.
func RunOnce(ctx context.Context, eff config.EffectiveConfigResult) error {
	arc := eff.Config.Archive
	idle := arc.IdlePeriod.Duration()
	if idle <= 0 {
		idle = 30 * 24 * time.Hour
	}
	cutoff := time.Now().UTC().Add(-idle).UnixNano()

	vals, err := store.ListConversations()
	if err != nil {
		return err
	}

	swept := 0
	for _, raw := range vals {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		var c models.Conversation
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			continue
		}
		if c.Archived {
			continue
		}
		last := c.UpdatedTS
		if last == 0 {
			last = c.CreatedTS
		}
		if last >= cutoff {
			continue
		}

		if arc.DryRun {
			logger.Info("archiver_would_archive", zap.String("conversation", c.ID))
			continue
		}

		if err := store.ArchiveConversation(c.ID, time.Now().UTC().UnixNano()); err != nil {
			logger.Error("archiver_archive_failed", zap.String("conversation", c.ID), zap.Error(err))
			continue
		}
		telemetry.ConversationsArchived.Inc()
		swept++

		if arc.GuideDir != "" {
			if err := writeGuideSnapshot(c, arc.GuideDir, arc.GuideFormat); err != nil {
				logger.Error("archiver_snapshot_failed", zap.String("conversation", c.ID), zap.Error(err))
			}
		}
	}

	logger.Info("archiver_run_complete", zap.Int("archived", swept), zap.Int("scanned", len(vals)))
	return nil
}

// writeGuideSnapshot exports the conversation's learning guide to a file in
// dir, named after the conversation slug.
func writeGuideSnapshot(c models.Conversation, dir, format string) error {
	if format == "" {
		format = "md"
	}
	exporter, err := export.NewExporter(format)
	if err != nil {
		return err
	}

	msgs, err := store.ListMessages(c.ID)
	if err != nil {
		return err
	}
	model, err := thread.Rebuild(store.DecodeMessages(msgs))
	if err != nil {
		return err
	}

	// re-read metadata so the snapshot records the archive flag
	if s, err := store.GetConversation(c.ID); err == nil {
		_ = json.Unmarshal([]byte(s), &c)
	}
	guide := export.BuildGuide(c, model.Group())

	name := c.Slug
	if name == "" {
		name = c.ID
	}
	path := filepath.Join(dir, name+"."+exporter.Extension())
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := exporter.Export(guide, f); err != nil {
		return err
	}
	telemetry.GuidesExported.WithLabelValues(exporter.Extension()).Inc()
	logger.Info("archiver_snapshot_written", zap.String("conversation", c.ID), zap.String("path", path))
	return nil
}
