package app

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

	"github.com/ledgerline/erpsite/content/fallback"
	"github.com/ledgerline/erpsite/content/model"
	"github.com/ledgerline/erpsite/content/store"
	"github.com/ledgerline/erpsite/internal/config"
	"github.com/ledgerline/erpsite/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	gracefulTimeout         = 30 * time.Second
	serverRequestTimeout    = 10 * time.Second
	serverReadTimeout       = 10 * time.Second
	serverWriteTimeout      = 15 * time.Second
	serverIdleTimeout       = 60 * time.Second
	serverReadHeaderTimeout = 5 * time.Second
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	def := config.Default()
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the content API server",
		Long: `Start the content API server.

Content is kept in memory and seeded at startup from --seed-file, a YAML
dataset with hero, services and testimonials, or from the built-in dataset
when no file is given. Admin endpoints require --admin-token.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			ln, err := net.Listen("tcp", cfg.Address)
			if err != nil {
				return fmt.Errorf("cannot listen on %s: %w", cfg.Address, err)
			}
			return serve(cmd.Context(), cfg, ln)
		},
	}

	flags := cmd.Flags()
	flags.String(config.KeyAddress, def.Address, "Address to listen on")
	flags.String(config.KeyAdminToken, "", "Shared secret for admin endpoints")
	flags.String(config.KeySeedFile, "", "YAML dataset to seed the content store with")
	bindFlags(v, flags, config.KeyAddress, config.KeyAdminToken, config.KeySeedFile)

	return cmd
}

// serve runs the content API on ln until ctx is done or a termination signal
// is received, then shuts down gracefully.
func serve(ctx context.Context, cfg *config.Config, ln net.Listener) error {
	st := store.NewMemory()
	defer st.Close()

	seed, err := seedData(cfg.SeedFile)
	if err != nil {
		ln.Close()
		return err
	}
	if err = st.Seed(ctx, seed); err != nil {
		ln.Close()
		return fmt.Errorf("cannot seed content store: %w", err)
	}

	srv, err := server.New(st,
		server.WithAdminToken(cfg.AdminToken),
		server.WithRequestTimeout(serverRequestTimeout))
	if err != nil {
		ln.Close()
		return err
	}

	httpServer := &http.Server{
		Handler:           srv,
		ReadHeaderTimeout: serverReadHeaderTimeout,
		ReadTimeout:       serverReadTimeout,
		WriteTimeout:      serverWriteTimeout,
		IdleTimeout:       serverIdleTimeout,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Infow("Content API listening", "addr", ln.Addr().String())
		errCh <- httpServer.Serve(ln)
	}()

	select {
	case err = <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("content API server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down content API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), gracefulTimeout)
	defer cancel()
	if err = httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("cannot shut down content API: %w", err)
	}
	return nil
}

func seedData(path string) (*model.PageData, error) {
	if path == "" {
		return fallback.Load()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read seed file: %w", err)
	}
	pd, err := fallback.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("invalid seed file %s: %w", path, err)
	}
	return pd, nil
}
