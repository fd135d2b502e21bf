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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ligun0805/ifo-client/internal/config"
	"github.com/ligun0805/ifo-client/internal/logger"
)

var (
	settings     config.Settings
	flagOffering string
	flagRPC      string
	registry     = prometheus.NewRegistry()
)

var rootCmd = &cobra.Command{
	Use:           "ifocli",
	Short:         "Track an IFO sale, contribute and claim from the terminal",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		config.LoadDotenv()
		settings = config.Load()
		if flagOffering != "" {
			settings.OfferingID = flagOffering
		}
		if flagRPC != "" {
			settings.RPCURL = flagRPC
		}
		if err := settings.Validate(); err != nil {
			return err
		}
		logger.InitWithFile("ifocli", settings.LogLevel, settings.LogFile)
		if settings.MetricsAddr != "" {
			serveMetrics(cmd.Context(), settings.MetricsAddr)
		}
		return nil
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagOffering, "offering", "", "offering id (default: OFFERING_ID or the active offering)")
	rootCmd.PersistentFlags().StringVar(&flagRPC, "rpc", "", "JSON-RPC endpoint (default: RPC_URL)")
}

func serveMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	logger.Log.Info("serving metrics", zap.String("addr", addr))
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
