package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"asd_commerce/internal/messaging/inproc"
	"asd_commerce/internal/messaging/natsfwd"
	"asd_commerce/internal/notify"
)

const (
	notifierID  = "notifier"
	forwarderID = "nats-forwarder"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with a background drain loop",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := opts.cfg
			if addr != "" {
				cfg.Server.Addr = addr
			}
			a, err := newApp(cmd.Context(), cfg, opts.logger)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close(context.Background()) }()
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "http listen address override")
	return cmd
}

// serve runs until ctx is done or one of its loops fails.
func (a *app) serve(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	server := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           a.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return a.system.DrainLoop(ctx)
	})

	if a.cfg.Notify.Enabled {
		l := notify.New(a.cfg.Notify.Recipient, nil, a.logger).Listen(a.bus, notifierID)
		g.Go(func() error {
			l.Run(ctx)
			return nil
		})
	}

	if a.cfg.Events.NATSURL != "" {
		conn, err := natsfwd.Dial(a.cfg.Events.NATSURL, "asd")
		if err != nil {
			a.logger.Error().Err(err).Str("url", a.cfg.Events.NATSURL).Msg("nats unavailable, events stay in process")
		} else {
			fwd := natsfwd.New(conn, a.cfg.Events.SubjectPrefix, a.logger)
			events := a.bus.Subscribe(forwarderID, inproc.Wildcard)
			g.Go(func() error {
				defer a.bus.Unsubscribe(forwarderID, inproc.Wildcard)
				return fwd.Run(ctx, events)
			})
		}
	}

	a.logger.Info().
		Str("addr", a.cfg.Server.Addr).
		Str("db", a.cfg.Store.DBPath).
		Dur("drain_interval", a.cfg.Server.DrainInterval.Duration).
		Msg("asd started")
	return g.Wait()
}
