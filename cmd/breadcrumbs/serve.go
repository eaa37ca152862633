package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"breadcrumbs/internal/api"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and optional breadcrumb-injecting proxy",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "HTTP listen address (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	var upstream *url.URL
	if raw := a.cfg.Server.Upstream; raw != "" {
		upstream, err = url.Parse(raw)
		if err != nil || upstream.Host == "" {
			return fmt.Errorf("server.upstream must be an absolute URL (got %q)", raw)
		}
	}

	server, err := api.NewServer(api.Options{
		Settings: a.cfg.Settings,
		Build:    a.build,
		Store:    a.store,
		Metrics:  a.metrics,
		Upstream: upstream,
		Version:  version,
		Logger:   a.logger,
	})
	if err != nil {
		return err
	}

	addr := a.cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("breadcrumbs server listening", "addr", addr, "upstream", a.cfg.Server.Upstream, "version", version)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout.Or(15*time.Second))
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("http shutdown error", "error", err)
			return err
		}
		a.logger.Info("breadcrumbs server stopped")
		return nil
	})
	return g.Wait()
}
