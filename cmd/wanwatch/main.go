package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"wanwatch/internal/config"
	"wanwatch/internal/logger"
	"wanwatch/internal/notify"
	"wanwatch/internal/resolver"
	"wanwatch/internal/state"
	"wanwatch/internal/updater"
	"wanwatch/internal/version"
	"wanwatch/internal/watcher"

	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "Path to optional config file (environment takes precedence)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.GetInfo().String())
		os.Exit(0)
	}

	// Configuration gate: invalid settings stop the process before any
	// cycle runs.
	cfg, err := config.Load(*configPath)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&cfg.Log)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	defer func(log *zap.Logger) {
		_ = log.Sync()
	}(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	meta := notify.Meta{
		ServerName: cfg.ServerName,
		BotName:    cfg.BotName,
		Version:    version.GetInfo().Version,
	}

	store := state.New(cfg.StateFile, cfg.UpdateMarkFile, log)

	dispatcher, err := notify.NewManager(&cfg.Notify, meta, log)
	if err != nil {
		log.Error("Failed to initialize notification channels", zap.Error(err))
		os.Exit(1)
	}

	log.Info("Notification channels configured",
		zap.Strings("channels", dispatcher.Senders()))

	var checker watcher.UpdateChecker
	if cfg.Update.Enabled {
		checker = updater.New(cfg.Update.FeedURL, version.GetInfo().Version, store, log)
	}

	w := watcher.New(cfg,
		resolver.New(&cfg.Resolver, log),
		store,
		dispatcher,
		checker,
		log)

	// Stop between cycles on SIGINT/SIGTERM
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		log.Info("Received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	if err := w.Run(ctx); err != nil {
		log.Error("Watcher exited with error", zap.Error(err))
		os.Exit(1)
	}
}
