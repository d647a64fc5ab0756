package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"ancine-dash/internal/app"
	"ancine-dash/internal/service/ingestion"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(rt *rootState) *cobra.Command {
	var (
		listen        string
		schedule      string
		ingestOnStart bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard and the JSON API",
		Long: "Serves the dashboard under /ui and the JSON API under /api/v1. With a schedule " +
			"(--schedule or INGEST_SCHEDULE) the ingestion pipeline is re-run on that cron spec.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if listen != "" {
				rt.cfg.ListenAddr = listen
			}
			if cmd.Flags().Changed("schedule") {
				rt.cfg.IngestSchedule = schedule
			}
			s, err := rt.openStores()
			if err != nil {
				return err
			}
			defer s.Close()

			return serve(cmd.Context(), rt.newApp(s), rt.logger, ingestOnStart)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (overrides LISTEN_ADDR)")
	cmd.Flags().StringVar(&schedule, "schedule", "", "Cron spec for re-ingestion (overrides INGEST_SCHEDULE; empty disables)")
	cmd.Flags().BoolVar(&ingestOnStart, "ingest-on-start", false, "Run the ingestion pipeline once at startup")
	return cmd
}

// serve runs the HTTP server, the optional ingest scheduler and the optional
// startup ingest until ctx is cancelled or the server fails.
func serve(ctx context.Context, a *app.App, logger *slog.Logger, ingestOnStart bool) error {
	g, ctx := errgroup.WithContext(ctx)
	srv := a.Server(ctx)

	if spec := a.Cfg.IngestSchedule; spec != "" {
		sched := ingestion.NewScheduler(a.Pipeline, logger)
		if err := sched.Start(ctx, spec); err != nil {
			return err
		}
		g.Go(func() error {
			<-ctx.Done()
			<-sched.Stop().Done()
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("dashboard listening", "addr", srv.Addr, "url", "http://"+hostForListenAddr(srv.Addr)+"/ui")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	if ingestOnStart {
		g.Go(func() error {
			if _, err := a.Pipeline.RunTriggered(ctx, "startup"); err != nil && ctx.Err() == nil {
				logger.Warn("startup ingest failed", "error", err)
			}
			return nil
		})
	}

	return g.Wait()
}

// hostForListenAddr turns a listen address into something a browser can
// open: wildcard and empty hosts become localhost.
func hostForListenAddr(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "localhost:8080"
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "localhost"
	}
	return net.JoinHostPort(host, port)
}
