// Package watcher drives the monitoring cycle: resolve, classify,
// dispatch, persist. One logical thread of control; cycles run on a fixed
// interval and stop between cycles when the context is cancelled.
package watcher

import (
	"context"
	"fmt"
	"time"

	"wanwatch/internal/config"
	"wanwatch/internal/detector"
	"wanwatch/internal/types"

	"go.uber.org/zap"
)

// Resolver obtains the current public addresses.
type Resolver interface {
	Resolve(ctx context.Context, monitorIPv4, monitorIPv6 bool) (types.AddressPair, *types.GeoInfo, error)
}

// Store persists the address state and the update mark.
type Store interface {
	Load() types.AddressPair
	Save(pair types.AddressPair) error
	LoadUpdateMark() string
	SaveUpdateMark(version string) error
}

// Dispatcher fans notifications out to the configured channels.
type Dispatcher interface {
	DispatchChange(ctx context.Context, event *types.ChangeEvent) map[string]bool
	DispatchUpdate(ctx context.Context, info *types.UpdateInfo) map[string]bool
	DispatchError(ctx context.Context, message string)
}

// UpdateChecker decides whether an update notification is due.
type UpdateChecker interface {
	Check(ctx context.Context) *types.UpdateInfo
}

// Watcher ties the pipeline together.
type Watcher struct {
	config     *config.Config
	resolver   Resolver
	store      Store
	dispatcher Dispatcher
	updater    UpdateChecker
	logger     *zap.Logger

	lastUpdateCheck time.Time
}

// New creates a new watcher. updater may be nil when update checks are
// disabled.
func New(cfg *config.Config, r Resolver, s Store, d Dispatcher, u UpdateChecker, logger *zap.Logger) *Watcher {
	return &Watcher{
		config:     cfg,
		resolver:   r,
		store:      s,
		dispatcher: d,
		updater:    u,
		logger:     logger,
	}
}

// Run performs an immediate first cycle, then repeats on the configured
// interval until the context is cancelled. Cycle failures are handled
// inside the cycle and never stop the loop.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info("Watcher started",
		zap.String("server", w.config.ServerName),
		zap.Duration("interval", w.config.CheckInterval),
		zap.Bool("ipv4", w.config.MonitorIPv4),
		zap.Bool("ipv6", w.config.MonitorIPv6),
		zap.Bool("update_check", w.config.Update.Enabled))

	if w.config.Update.Enabled && w.config.Update.OnStartup {
		w.checkUpdates(ctx)
	}

	if err := w.RunCycle(ctx); err != nil {
		w.logger.Error("Initial check cycle failed", zap.Error(err))
	}

	ticker := time.NewTicker(w.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Watcher stopping")
			return nil
		case <-ticker.C:
			if err := w.RunCycle(ctx); err != nil {
				w.logger.Error("Check cycle failed", zap.Error(err))
			}
			if w.updateDue() {
				w.checkUpdates(ctx)
			}
		}
	}
}

// RunCycle performs one resolve-classify-dispatch-persist pass.
// A resolution failure short-circuits the cycle: nothing is classified,
// dispatched or persisted, and the error path is notified instead.
func (w *Watcher) RunCycle(ctx context.Context) error {
	current, geo, err := w.resolver.Resolve(ctx, w.config.MonitorIPv4, w.config.MonitorIPv6)
	if err != nil {
		msg := fmt.Sprintf("failed to resolve public address: %v", err)
		w.logger.Error("Resolution failed", zap.Error(err))
		w.dispatcher.DispatchError(ctx, msg)
		return err
	}

	previous := w.store.Load()
	event := detector.NewEvent(current, previous, geo)

	if event.Kind == types.ChangeNone {
		w.logger.Info("Address unchanged",
			zap.String("ipv4", current.IPv4),
			zap.String("ipv6", current.IPv6))
	} else {
		w.logger.Info("Address change detected",
			zap.String("kind", string(event.Kind)),
			zap.String("ipv4", current.IPv4),
			zap.String("ipv6", current.IPv6),
			zap.String("previous_ipv4", previous.IPv4),
			zap.String("previous_ipv6", previous.IPv6))

		results := w.dispatcher.DispatchChange(ctx, event)
		for channel, ok := range results {
			if !ok {
				w.logger.Warn("Channel delivery failed",
					zap.String("channel", channel))
			}
		}
	}

	// State is re-saved even when unchanged, refreshing the timestamp.
	if err := w.store.Save(current); err != nil {
		msg := fmt.Sprintf("failed to persist address state: %v", err)
		w.logger.Error("State persistence failed", zap.Error(err))
		w.dispatcher.DispatchError(ctx, msg)
		return err
	}

	return nil
}

// updateDue reports whether the update-check interval has elapsed.
func (w *Watcher) updateDue() bool {
	if !w.config.Update.Enabled || w.updater == nil {
		return false
	}
	return time.Since(w.lastUpdateCheck) >= w.config.Update.Interval
}

// checkUpdates runs one update check and, when at least one channel
// delivered, records the announced version.
func (w *Watcher) checkUpdates(ctx context.Context) {
	if w.updater == nil {
		return
	}
	w.lastUpdateCheck = time.Now()

	info := w.updater.Check(ctx)
	if info == nil {
		return
	}

	w.logger.Info("Update available",
		zap.String("current", info.CurrentVersion),
		zap.String("latest", info.LatestVersion))

	results := w.dispatcher.DispatchUpdate(ctx, info)
	for _, ok := range results {
		if ok {
			if err := w.store.SaveUpdateMark(info.LatestVersion); err != nil {
				w.logger.Error("Failed to record announced version", zap.Error(err))
			}
			return
		}
	}

	w.logger.Warn("Update notification failed on all channels, will retry",
		zap.String("version", info.LatestVersion))
}
