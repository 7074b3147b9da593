package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"asd_commerce/internal/config"
	"asd_commerce/internal/decision"
	"asd_commerce/internal/export"
	"asd_commerce/internal/messaging/inproc"
	"asd_commerce/internal/metrics"
	"asd_commerce/internal/notify"
	"asd_commerce/internal/policy"
	"asd_commerce/internal/source"
	sqlitestore "asd_commerce/internal/store/sqlite"
	"asd_commerce/internal/system"
)

// app is everything a command needs, opened against one database.
type app struct {
	cfg     config.Config
	logger  zerolog.Logger
	store   *sqlitestore.Store
	bus     *inproc.Bus
	metrics *metrics.Provider
	system  *system.System
	exports *export.Gateway
}

func newApp(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*app, error) {
	dbPath := filepath.Clean(cfg.Store.DBPath)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	store, err := sqlitestore.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	a := &app{cfg: cfg, logger: logger, store: store}
	if err := a.init(ctx); err != nil {
		_ = a.Close(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *app) init(ctx context.Context) error {
	if err := a.store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate sqlite: %w", err)
	}

	rules, err := policy.ParseRules(a.cfg.Delegation)
	if err != nil {
		return err
	}
	provider, err := metrics.NewProvider()
	if err != nil {
		return err
	}
	a.metrics = provider
	recorder, err := metrics.NewRecorder(provider.Meter())
	if err != nil {
		return err
	}

	creds := source.Credentials{
		AccessKey:  a.cfg.Marketplace.AccessKey,
		SecretKey:  a.cfg.Marketplace.SecretKey,
		PartnerTag: a.cfg.Marketplace.PartnerTag,
		Country:    a.cfg.Marketplace.Country,
	}
	if !creds.Configured() {
		a.logger.Warn().Msg("marketplace credentials not configured, agents use placeholder catalog data")
	}
	static := source.NewStatic(creds)

	a.bus = inproc.New(a.cfg.Events.Buffer)
	sys, err := system.New(system.Options{
		Store:   a.store,
		Bus:     a.bus,
		Policy:  policy.New(rules),
		Metrics: recorder,
		Sources: system.Sources{Catalog: static, CRM: static, Market: static, Sales: static},
		Config: system.Config{
			DrainInterval: a.cfg.Server.DrainInterval.Duration,
			Decision: decision.Config{
				InventoryThreshold: a.cfg.Pricing.InventoryThreshold,
				Discount:           a.cfg.Pricing.Discount,
				Markup:             a.cfg.Pricing.Markup,
				SentimentCacheTTL:  a.cfg.Pricing.SentimentCacheTTL.Duration,
			},
		},
		Logger: a.logger,
	})
	if err != nil {
		return err
	}
	a.system = sys

	a.exports, err = export.NewGateway(a.cfg.Export.Root, a.store)
	if err != nil {
		return err
	}

	if _, err := sys.Restore(ctx); err != nil {
		return fmt.Errorf("restore state: %w", err)
	}
	return nil
}

func (a *app) Close(ctx context.Context) error {
	var errs []error
	if a.metrics != nil {
		errs = append(errs, a.metrics.Shutdown(ctx))
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}

// startNotifier delivers notifications in the background. The returned stop
// blocks until events published before it was called have been sent.
func (a *app) startNotifier(ctx context.Context, id string, sender notify.Sender) (stop func()) {
	l := notify.New(a.cfg.Notify.Recipient, sender, a.logger).Listen(a.bus, id)
	ctx, cancel := context.WithCancel(ctx)
	var g errgroup.Group
	g.Go(func() error {
		l.Run(ctx)
		return nil
	})
	return func() {
		cancel()
		_ = g.Wait()
	}
}
