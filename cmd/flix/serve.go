package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/vango-dev/flix/internal/demo"
	flixerrors "github.com/vango-dev/flix/internal/errors"
	"github.com/vango-dev/flix/pkg/archive"
	"github.com/vango-dev/flix/pkg/builder"
	"github.com/vango-dev/flix/pkg/metrics"
	"github.com/vango-dev/flix/pkg/provider"
	"github.com/vango-dev/flix/pkg/server"
)

func serveCmd(a *app) *cobra.Command {
	var (
		addr     string
		record   string
		username string
		password string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the login screen to remote widgets",
		Long: `Serve the login screen over websocket. Every connection on /ws gets its
own screen; batches are sent as binary frames and row selections come back
as event frames.

With --record, the displayed snapshot of every session is saved after each
batch, keyed by session ID.

Examples:
  flix serve
  flix serve --addr=:9000
  flix serve --record=./snapshots
  flix serve --record=s3://snapshots/flix`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			if record != "" {
				a.cfg.Archive.URL = record
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, a, func(l *demo.Login) {
				l.Username.Set(username)
				l.Password.Set(password)
			})
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from server.addr)")
	cmd.Flags().StringVar(&record, "record", "", "archive URL for session snapshots (default from archive.url)")
	cmd.Flags().StringVar(&username, "username", "", "prefill the username input")
	cmd.Flags().StringVar(&password, "password", "", "prefill the password input")
	return cmd
}

func runServe(ctx context.Context, a *app, prefill func(*demo.Login)) error {
	cfg := a.cfg
	anim, err := cfg.Animation()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(metrics.WithRegistry(reg), metrics.WithNamespace(cfg.Metrics.Namespace))
	}

	opts := []server.Option{
		server.WithLogger(a.logger),
		server.WithMetrics(m, reg),
		server.WithBuilderOptions(
			builder.WithAnimation(anim),
			builder.WithQueueSize(cfg.Builder.QueueSize),
		),
	}
	if cfg.Archive.URL != "" {
		archiveOpts := []archive.Option{archive.WithRegion(cfg.Archive.Region)}
		if cfg.Archive.Endpoint != "" {
			archiveOpts = append(archiveOpts, archive.WithEndpoint(cfg.Archive.Endpoint))
		}
		store, err := archive.Open(ctx, cfg.Archive.URL, archiveOpts...)
		if err != nil {
			return flixerrors.FromError(err)
		}
		opts = append(opts, server.WithArchive(store))
		a.logger.Info("recording snapshots", "url", cfg.Archive.URL)
	}

	factory := func(_ context.Context, sessionID string) ([]*provider.Section, error) {
		l := demo.NewLogin()
		prefill(l)
		l.OnLogin(func(user string) {
			a.logger.Info("login accepted", "session_id", sessionID, "username", user)
		})
		return demo.Sections(l), nil
	}

	srv := server.New(cfg.ServerConfig(), factory, opts...)
	if err := srv.ListenAndServe(ctx); err != nil {
		return flixerrors.New("F041").Wrap(err)
	}
	return nil
}
