package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/p-blackswan/tabpile/internal/affordance"
	"github.com/p-blackswan/tabpile/internal/browser"
	"github.com/p-blackswan/tabpile/internal/event"
	"github.com/p-blackswan/tabpile/internal/health"
	"github.com/p-blackswan/tabpile/internal/metrics"
	"github.com/p-blackswan/tabpile/internal/mgmt"
	"github.com/p-blackswan/tabpile/internal/record"
	"github.com/p-blackswan/tabpile/internal/retry"
	"github.com/p-blackswan/tabpile/internal/tabs"
	"github.com/p-blackswan/tabpile/internal/tracker"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the tracker daemon and the management API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	cfg, policy, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stdout)

	logger.Info().
		Str("environment", cfg.Environment).
		Str("mgmt_addr", cfg.MgmtListenAddr).
		Str("kv_backend", cfg.KVBackend).
		Bool("browser_enabled", cfg.BrowserEnabled).
		Msg("starting tabpile")

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	b, err := openBackends(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if err := b.close(); err != nil {
			logger.Error().Err(err).Msg("failed to close storage")
		}
	}()

	clock := clockwork.NewRealClock()
	m := metrics.New()
	bus := event.NewBus(cfg.EventBufferSize)
	scheduler := event.NewScheduler(clock, logger)
	controls := affordance.NewRegistry(bus)
	records := record.NewAdapter(b.kv, clock, logger)

	checker := health.NewChecker(logger)
	for name, check := range b.ping {
		checker.Register(name, check)
	}

	host := browser.NewHost(browser.Options{
		Headless:  cfg.BrowserHeadless,
		StartURLs: cfg.StartURLs(),
		Install:   cfg.BrowserInstall,
	}, clock, logger)

	trackerCfg := tracker.Config{
		FolderName:  cfg.ArchiveFolder,
		TimerName:   cfg.TimerName,
		SweepPeriod: cfg.SweepPeriod,
		Schemes:     tabs.SchemeSet(policy.Schemes),
	}
	tr := tracker.New(trackerCfg, tracker.Deps{
		Host:       host,
		Records:    records,
		Bookmarks:  b.store.Bookmarks(),
		Timer:      scheduler,
		Affordance: controls,
		Metrics:    m,
		Clock:      clock,
	}, logger)

	if err := bus.Attach(ctx, scheduler, host); err != nil {
		return err
	}

	if cfg.BrowserEnabled {
		startCfg := retry.DefaultConfig()
		startCfg.MaxAttempts = 3
		if err := retry.Do(ctx, clock, startCfg, host.Start); err != nil {
			return fmt.Errorf("start browser: %w", err)
		}
		defer func() {
			if err := host.Stop(); err != nil {
				logger.Error().Err(err).Msg("failed to stop browser")
			}
		}()
		checker.Register("browser", health.SoftCheck(host.Ping))
	} else {
		logger.Info().Msg("browser not enabled, serving API only")
	}

	if err := tr.Setup(ctx); err != nil {
		logger.Warn().Err(err).Msg("setup incomplete, sweeps will retry folder resolution")
	}

	go func() {
		if err := tr.Run(ctx, bus.C()); err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("tracker stopped")
		}
	}()

	srv := mgmt.NewServer(ctx, mgmt.ServerConfig{
		ListenAddr: cfg.MgmtListenAddr,
		AuthConfig: mgmt.AuthConfig{
			Mode:      cfg.MgmtAuthMode,
			APIKey:    cfg.MgmtAPIKey,
			JWTSecret: cfg.MgmtJWTSecret,
		},
		RateLimit: mgmt.RateLimitConfig{
			RPS:   cfg.MgmtRateLimitRPS,
			Burst: cfg.MgmtRateLimitBurst,
		},
		CORSOrigins: cfg.MgmtCORSOrigins,
		TimerName:   trackerCfg.TimerName,
	}, mgmt.Deps{
		Records:     records,
		Controls:    controls,
		Destination: tr,
		Archive:     b.store.Bookmarks(),
		Events:      bus,
		Checker:     checker,
		Metrics:     m,
	}, logger)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- srv.Start()
	}()

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case <-ctx.Done():
		logger.Info().Msg("context cancelled, shutting down")
	case err := <-srvErr:
		logger.Error().Err(err).Msg("management API server failed")
	}

	if err := srv.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("management API shutdown error")
	}
	scheduler.Clear(trackerCfg.TimerName)
	cancel()

	logger.Info().Msg("tabpile stopped")
	return nil
}
