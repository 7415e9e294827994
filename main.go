package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/odvcencio/confedit/client"
	"github.com/odvcencio/confedit/logging"
	"github.com/odvcencio/confedit/metrics"
	"github.com/odvcencio/confedit/server"
	"github.com/odvcencio/confedit/state"
	"github.com/odvcencio/confedit/web"
)

const (
	shutdownTimeout = 10 * time.Second
	healthTimeout   = 3 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "confedit: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	setDefaults(v)

	var cfgFile string
	root := &cobra.Command{
		Use:           "confedit",
		Short:         "Browser editor for Home Assistant configuration files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(v, cfgFile)
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./confedit.yaml)")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-format", "json", "log format (json, console)")
	bindFlag(v, root, "log.level", "log-level")
	bindFlag(v, root, "log.format", "log-format")

	root.AddCommand(newServeCmd(v), newEditCmd(v))
	return root
}

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the file and entity API in front of the config directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			log, err := logging.New(cfg.Log)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			configDir := resolveConfigDir(cfg.Serve.ConfigDir, configDirs...)
			if configDir != cfg.Serve.ConfigDir {
				log.Info("config directory missing, using fallback",
					zap.String("configured", cfg.Serve.ConfigDir),
					zap.String("using", configDir))
			}
			srv := server.New(server.Config{
				ConfigDir: configDir,
				HAURL:     cfg.Serve.HAURL,
				Token:     os.Getenv("SUPERVISOR_TOKEN"),
				StaticDir: cfg.Serve.StaticDir,
				Timeout:   cfg.Serve.Timeout,
				Logger:    log,
			})
			log.Info("api server starting",
				zap.String("addr", cfg.Serve.Addr),
				zap.String("config_dir", configDir))
			return listenAndServe(cmd.Context(), log, &http.Server{
				Addr:              cfg.Serve.Addr,
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       30 * time.Second,
				WriteTimeout:      60 * time.Second,
				IdleTimeout:       120 * time.Second,
			})
		},
	}

	cmd.Flags().String("addr", ":8099", "listen address")
	cmd.Flags().String("config-dir", "/config", "directory exposed for editing")
	cmd.Flags().String("ha-url", server.DefaultHAURL, "Home Assistant API base URL")
	cmd.Flags().String("static-dir", "", "directory with the browser UI")
	bindFlag(v, cmd, "serve.addr", "addr")
	bindFlag(v, cmd, "serve.config-dir", "config-dir")
	bindFlag(v, cmd, "serve.ha-url", "ha-url")
	bindFlag(v, cmd, "serve.static-dir", "static-dir")
	return cmd
}

func newEditCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Host editor sessions over WebSocket against a running API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			log, err := logging.New(cfg.Log)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			handler, err := newEditHandler(cmd.Context(), cfg.Edit, log)
			if err != nil {
				return err
			}
			log.Info("editor host starting",
				zap.String("addr", cfg.Edit.Addr),
				zap.String("api", cfg.Edit.API))
			// No write timeout: sessions are long-lived WebSocket connections.
			return listenAndServe(cmd.Context(), log, &http.Server{
				Addr:              cfg.Edit.Addr,
				Handler:           handler,
				ReadHeaderTimeout: 10 * time.Second,
				IdleTimeout:       120 * time.Second,
			})
		},
	}

	cmd.Flags().String("addr", ":8080", "listen address")
	cmd.Flags().String("api", "http://localhost:8099/", "base URL of the file and entity API")
	cmd.Flags().String("state-file", "confedit-state.yaml", "file holding persisted UI state")
	cmd.Flags().String("static-dir", "", "directory with the browser UI")
	bindFlag(v, cmd, "edit.addr", "addr")
	bindFlag(v, cmd, "edit.api", "api")
	bindFlag(v, cmd, "edit.state-file", "state-file")
	bindFlag(v, cmd, "edit.static-dir", "static-dir")
	return cmd
}

// newEditHandler builds the editor host. An unreachable API is logged but
// not fatal; the browser shows load errors until it comes up.
func newEditHandler(ctx context.Context, cfg EditConfig, log *zap.Logger) (http.Handler, error) {
	api, err := client.New(client.Config{BaseURL: cfg.API}, log)
	if err != nil {
		return nil, err
	}
	healthCtx, cancel := context.WithTimeout(ctx, healthTimeout)
	err = api.Health(healthCtx)
	cancel()
	if err != nil {
		log.Warn("api unreachable", zap.String("api", cfg.API), zap.Error(err))
	}
	store, err := state.OpenFileStore(cfg.StateFile)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metrics.Handler())
	mux.Handle("/", web.NewServer(web.Config{
		API:       api,
		Store:     store,
		StaticDir: cfg.StaticDir,
		Logger:    log,
	}))
	return logging.Middleware(log)(metrics.Middleware(mux)), nil
}

// listenAndServe runs srv until ctx is cancelled, then drains it.
func listenAndServe(ctx context.Context, log *zap.Logger, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
