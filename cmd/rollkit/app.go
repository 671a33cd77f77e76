package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/loam"
	"github.com/aretw0/rollkit"
	"github.com/aretw0/rollkit/internal/adapters/file"
	"github.com/aretw0/rollkit/internal/config"
	"github.com/aretw0/rollkit/internal/logging"
	"github.com/aretw0/rollkit/internal/telemetry"
	loamAdapter "github.com/aretw0/rollkit/pkg/adapters/loam"
	"github.com/aretw0/rollkit/pkg/adapters/memory"
	redisAdapter "github.com/aretw0/rollkit/pkg/adapters/redis"
	"github.com/aretw0/rollkit/pkg/adapters/sqlite"
	"github.com/aretw0/rollkit/pkg/dice"
	"github.com/aretw0/rollkit/pkg/ledger"
	"github.com/aretw0/rollkit/pkg/observability"
	"github.com/aretw0/rollkit/pkg/persistence/middleware"
	"github.com/aretw0/rollkit/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

// app bundles everything a command needs, built once from the config.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	engine   *rollkit.Engine
	ledger   *ledger.Ledger
	macros   *loamAdapter.Library
	registry *prometheus.Registry
	mode     dice.Mode

	closers []func(context.Context) error
}

// newApp wires the engine, the store chain, the ledger and the macro library.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{
		cfg:      cfg,
		logger:   logging.New(cfg.Level()),
		registry: prometheus.NewRegistry(),
	}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close(context.Background())
		}
	}()

	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry, rollkit.Version)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, shutdown)

	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := observability.NewMetrics(a.registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	if a.mode, err = dice.ParseMode(cfg.Engine.Mode); err != nil {
		return nil, err
	}

	opts := []rollkit.Option{
		rollkit.WithLogger(a.logger),
		rollkit.WithLenientModifiers(cfg.Engine.Lenient),
		rollkit.WithMaxIterations(cfg.Engine.MaxIterations),
		rollkit.WithMaxDice(cfg.Engine.MaxDice),
		rollkit.WithLifecycleHooks(observability.Combine(
			observability.LoggingHooks(a.logger),
			metrics.Hooks(),
		)),
	}
	if cfg.Engine.Seed != nil {
		opts = append(opts, rollkit.WithSeed(*cfg.Engine.Seed))
	}
	if a.engine, err = rollkit.New(opts...); err != nil {
		return nil, err
	}

	store, locker, err := a.openStore()
	if err != nil {
		return nil, err
	}
	if store, err = a.wrapStore(store); err != nil {
		return nil, err
	}

	ledgerOpts := []ledger.Option{ledger.WithLogger(a.logger)}
	if locker != nil {
		ledgerOpts = append(ledgerOpts, ledger.WithLocker(locker))
		if cfg.Store.LockTTL > 0 {
			ledgerOpts = append(ledgerOpts, ledger.WithLockTTL(cfg.Store.LockTTL))
		}
	}
	a.ledger = ledger.New(store, a.engine, ledgerOpts...)

	if cfg.Macros.Dir != "" {
		if a.macros, err = loamAdapter.Open(cfg.Macros.Dir, loam.WithVersioning(false)); err != nil {
			return nil, fmt.Errorf("failed to open macro library: %w", err)
		}
	}

	ok = true
	return a, nil
}

// openStore selects the configured backend. The locker is non-nil only for
// backends shared between processes.
func (a *app) openStore() (ports.RollStore, ports.DistributedLocker, error) {
	sc := a.cfg.Store
	switch sc.Backend {
	case "", "memory":
		return memory.NewStore(), nil, nil
	case "file":
		path := sc.Path
		if path == "" {
			path = ".rollkit/rolls"
		}
		return file.New(path), nil, nil
	case "sqlite":
		s, err := sqlite.Open(sc.Path)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return s.Close() })
		return s, nil, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     sc.RedisAddr,
			Password: sc.RedisPassword,
			DB:       sc.RedisDB,
		})
		a.closers = append(a.closers, func(context.Context) error { return client.Close() })
		s := redisAdapter.NewFromClient(client,
			redisAdapter.WithPrefix(sc.RedisPrefix),
			redisAdapter.WithTTL(sc.TTL),
		)
		return s, redisAdapter.NewLocker(client, sc.RedisPrefix), nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", sc.Backend)
}

// wrapStore applies PII masking and, when a key is configured, encryption.
// Masking runs first so redacted values are what get sealed.
func (a *app) wrapStore(store ports.RollStore) (ports.RollStore, error) {
	var mws []middleware.Middleware

	if len(a.cfg.Store.RedactKeys) > 0 {
		pii, err := middleware.NewPIIMiddleware(a.cfg.Store.RedactKeys)
		if err != nil {
			return nil, err
		}
		mws = append(mws, pii)
	}

	key, err := a.cfg.Store.Key()
	if err != nil {
		return nil, err
	}
	if key != nil {
		enc, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})
		if err != nil {
			return nil, err
		}
		mws = append(mws, enc)
	}

	return middleware.Chain(store, mws...), nil
}

// macroLibrary returns the library as a port, nil when none is configured.
func (a *app) macroLibrary() ports.MacroLibrary {
	if a.macros == nil {
		return nil
	}
	return a.macros
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
