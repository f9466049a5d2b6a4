package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"mintgate/cmd/internal/passphrase"
	"mintgate/config"
	"mintgate/core/events"
	"mintgate/core/state"
	"mintgate/native/issuance"
	"mintgate/observability"
	"mintgate/observability/logging"
	"mintgate/observability/metrics"
	telemetry "mintgate/observability/otel"
	"mintgate/rpc"
	"mintgate/storage"
	"mintgate/storage/eventlog"
)

const (
	serviceName = "mintd"
	envVar      = "MINT_ENV"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	if err := run(*configFile); err != nil {
		slog.Error("mintd exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(configFile string) error {
	passSource := passphrase.NewSource(config.OwnerPassphraseEnv)
	cfg, err := config.Load(configFile, config.WithKeystorePassphraseSource(passSource.Get))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	env := strings.TrimSpace(cfg.Environment)
	if override := strings.TrimSpace(os.Getenv(envVar)); override != "" {
		env = override
	}
	logger := logging.Setup(serviceName, env, logging.Options{
		Level:      cfg.Logging.Level,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: serviceName,
		Environment: env,
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	owner, err := cfg.OwnerAddress()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("prepare data directory: %w", err)
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		return fmt.Errorf("open state database: %w", err)
	}
	defer db.Close()

	manager := state.NewManager(db)
	if err := manager.EnsureSchema(); err != nil {
		return err
	}

	dsn, err := eventlog.FileDSN(cfg.EventLogPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.EventLogPath), 0o755); err != nil {
		return fmt.Errorf("prepare event log directory: %w", err)
	}
	archive, err := eventlog.Open(dsn, logger)
	if err != nil {
		return err
	}
	defer archive.Close()

	engine := issuance.NewEngine(owner.Raw(), cfg.BaseURI)
	engine.SetState(manager)
	engine.SetEmitter(events.MultiEmitter{archive, observability.MetricsEmitter{}})

	clock, err := engine.Bootstrap(cfg.PhaseClock())
	if err != nil {
		return fmt.Errorf("bootstrap phase clock: %w", err)
	}
	total, err := engine.TotalIssued()
	if err != nil {
		return err
	}
	metrics.Issuance().SetHighestID(total)

	logger.Info("registry ready",
		slog.String("owner", owner.String()),
		slog.Int64("restrictedStart", clock.RestrictedStart),
		slog.Int64("publicStart", clock.PublicStart),
		slog.Uint64("issued", total),
		logging.MaskField("hmacSecret", cfg.Auth.HMACSecret))
	if strings.TrimSpace(cfg.Auth.HMACSecret) == "" {
		logger.Warn("Auth.HMACSecret is empty; authenticated RPC methods will reject every caller")
	}

	server := rpc.NewServer(engine, archive, rpc.ServerConfig{
		Auth: rpc.AuthConfig{
			HMACSecret: cfg.Auth.HMACSecret,
			Issuer:     cfg.Auth.Issuer,
			Audience:   cfg.Auth.Audience,
			ClockSkew:  time.Duration(cfg.Auth.ClockSkewSeconds) * time.Second,
		},
		RateLimit: rpc.RateLimit{
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			Burst:             cfg.RateLimit.Burst,
		},
	}, logger.With(slog.String("component", "rpc")))

	if err := server.ListenAndServe(ctx, cfg.ListenAddress); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("rpc server: %w", err)
	}
	logger.Info("mintd stopped")
	return nil
}
