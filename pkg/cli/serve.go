package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ekaya-inc/ekaya-sql-connector/pkg/handlers"
	"github.com/ekaya-inc/ekaya-sql-connector/pkg/middleware"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the metadata HTTP server",
		Long: `Start the HTTP server exposing statement metadata, procedure discovery
and rewriting. Without a datasource only /api/sql/rewrite and the health
endpoints are useful.`,
		Example: `  # Serve with ./config.yaml
  sqlconnector serve

  # Serve a SQLite file configured from the environment
  DATASOURCE_TYPE=sqlite DATASOURCE_PATH=./app.db sqlconnector serve`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd, opts)
		},
	}
}

func runServe(ctx context.Context, cmd *cobra.Command, opts *globalOptions) error {
	rt, err := openRuntime(ctx, cmd, opts, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	cfg := rt.cfg
	style, err := cfg.Style()
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, rt.connMgr, rt.tester(), rt.logger).RegisterRoutes(mux)
	handlers.NewMetadataHandler(rt.metadata, style, rt.logger).RegisterRoutes(mux)

	addr := net.JoinHostPort(cfg.BindAddr, cfg.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: middleware.RequestLogger(rt.logger)(mux),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	tls := cfg.TLSCertPath != ""
	rt.logger.Info("Starting sqlconnector",
		zap.String("addr", listener.Addr().String()),
		zap.String("base_url", cfg.BaseURL),
		zap.Bool("tls", tls),
		zap.Bool("datasource", rt.introspector != nil),
	)

	eg.Go(func() error {
		var err error
		if tls {
			err = srv.ServeTLS(listener, cfg.TLSCertPath, cfg.TLSKeyPath)
		} else {
			err = srv.Serve(listener)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		rt.logger.Info("Shutting down server")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}
