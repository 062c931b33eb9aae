// Package cli wires the spf13/cobra root command to config loading and
// the guide service, in the style of the pack's cobra-based tools
// (Thermoquad-heliostat/cmd, scriptschnell/cmd/eval).
package cli

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sxccxs/robot-server/internal/config"
	"github.com/sxccxs/robot-server/internal/guide"
	"github.com/sxccxs/robot-server/internal/logging"
	"github.com/sxccxs/robot-server/internal/observability"
)

var (
	configPath     string
	listenAddr     string
	adminListen    string
	logLevel       string
	logNoTimestamp bool
)

var rootCmd = &cobra.Command{
	Use:   "robotserverd",
	Short: "Robot guidance protocol server",
	Long: `robotserverd accepts robot connections over TCP, authenticates them
against a keyed-hash handshake, and guides each one blind to the origin
of its coordinate grid before handing back a secret message.

Configuration is read from a TOML file (--config); any flags given here
override the corresponding file values.`,
	Version: "0.1.0",
	RunE:    runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a TOML configuration file")
	rootCmd.PersistentFlags().StringVar(&listenAddr, "listen", "", "Override the robot protocol listen address")
	rootCmd.PersistentFlags().StringVar(&adminListen, "admin-listen", "", "Override the admin HTTP listen address")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override "+logging.EnvLogLevel)
	rootCmd.PersistentFlags().BoolVar(&logNoTimestamp, "log-no-timestamp", false, "Suppress timestamp fields in log output")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func runServe(cmd *cobra.Command, args []string) error {
	if logLevel != "" {
		os.Setenv(logging.EnvLogLevel, logLevel)
	}
	if logNoTimestamp {
		os.Setenv(logging.EnvLogTimestamp, "false")
	}
	logging.ConfigureRuntime()
	logger := observability.InitLogger("robotserverd")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("robotserverd: %w", err)
	}
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}
	if adminListen != "" {
		cfg.AdminListenAddr = adminListen
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	svc := guide.NewService(cfg, logger)

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("robotserverd: listen %s: %w", cfg.ListenAddr, err)
	}
	logger.Info().Str("addr", ln.Addr().String()).Msg("robot listener started")

	errCh := make(chan error, 2)
	go func() {
		errCh <- svc.Serve(ctx, ln)
	}()

	var adminSrv *http.Server
	if cfg.AdminListenAddr != "" {
		started := time.Now()
		router := observability.NewAdminRouter("robotserverd", logger, started, svc.ActiveSessions, svc.ActiveSessionUUIDs)
		adminSrv = &http.Server{Addr: cfg.AdminListenAddr, Handler: router}
		go func() {
			logger.Info().Str("addr", cfg.AdminListenAddr).Msg("admin listener started")
			if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- err
			}
		}()
	}

	select {
	case err := <-errCh:
		cancel()
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	if adminSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = adminSrv.Shutdown(shutdownCtx)
	}
	return <-errCh
}
