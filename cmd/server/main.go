package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/cagdaskarabulut/yali-speak/internal/config"
	"github.com/cagdaskarabulut/yali-speak/internal/logging"
	"github.com/cagdaskarabulut/yali-speak/internal/server"
	"github.com/cagdaskarabulut/yali-speak/internal/signaling"
	"github.com/cagdaskarabulut/yali-speak/internal/version"
)

const shutdownTimeout = 10 * time.Second

var (
	flagConfig   string
	flagAddr     string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:     "yali-server",
	Short:   "Signaling relay for yali voice rooms",
	Long:    `yali-server tracks room membership and relays WebRTC handshakes between participants. Audio never passes through it.`,
	Version: version.Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadServer(flagConfig, config.ServerOptions{
			ListenAddr: flagAddr,
			LogLevel:   flagLogLevel,
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return run(ctx, cfg)
	},
}

func run(ctx context.Context, cfg *config.ServerConfig) error {
	log := logging.Init(cfg.LogLevel, slog.LevelInfo)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	hub := signaling.NewHub(log, signaling.NewMetrics(reg))

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.NewMux(hub, cfg, reg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting signaling server", "addr", cfg.ListenAddr, "version", version.Version, "metrics", cfg.Metrics)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down", "rooms", hub.Registry.Len())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func init() {
	rootCmd.Flags().StringVarP(&flagConfig, "config", "c", "", "YAML config file")
	rootCmd.Flags().StringVarP(&flagAddr, "addr", "a", "", "Listen address (default :3001)")
	rootCmd.Flags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
}

func main() {
	rootCmd.SilenceUsage = true
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
