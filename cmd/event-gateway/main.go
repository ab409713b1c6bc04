package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/orbcast/orbcast/internal/bus"
	"github.com/orbcast/orbcast/internal/clientevent"
	"github.com/orbcast/orbcast/internal/common/config"
	"github.com/orbcast/orbcast/internal/server"
	"github.com/orbcast/orbcast/internal/session"
	"github.com/orbcast/orbcast/pkg/logger"
	"github.com/orbcast/orbcast/pkg/metrics"
	"github.com/orbcast/orbcast/pkg/version"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of event-gateway",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("event-gateway version %s\n", version.Get())
		},
	}

	rootCmd = &cobra.Command{
		Use:   "event-gateway",
		Short: "Orbcast event gateway",
		Long:  `The event gateway dispatches platform events to subscribed client sessions`,
		Run: func(cmd *cobra.Command, args []string) {
			run()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "conf", "event-gateway.yaml", "path to configuration file")
	rootCmd.AddCommand(versionCmd)
}

func run() {
	// Load configuration
	cfg, cfgPath, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration from %s: %v", cfgPath, err)
	}

	// Initialize logger
	zapLogger, err := logger.NewLogger(&cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = zapLogger.Sync()
	}()

	zapLogger.Info("starting event-gateway",
		zap.String("version", version.Get()),
		zap.String("config", cfgPath))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize metrics
	m := metrics.New(cfg.Metrics)

	// Initialize session store
	sessionStore, err := session.NewStore(zapLogger, &cfg.Session)
	if err != nil {
		zapLogger.Fatal("failed to initialize session store", zap.Error(err))
	}

	// Initialize event bus
	eventBus, err := bus.NewBus(zapLogger, &cfg.Bus)
	if err != nil {
		zapLogger.Fatal("failed to initialize event bus", zap.Error(err))
	}

	// Initialize client event service and start dispatching bus events
	svc := clientevent.NewService(zapLogger, sessionStore, eventBus, m)
	go func() {
		if err := svc.Run(ctx); err != nil {
			zapLogger.Error("event dispatch loop stopped", zap.Error(err))
		}
	}()

	// Start the operational HTTP server
	srv := server.NewServer(zapLogger, &cfg.Server, svc, sessionStore, m)
	srv.Start()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("shutting down event-gateway")
	cancel()
	if err := srv.Shutdown(context.Background()); err != nil {
		zapLogger.Error("failed to shutdown server", zap.Error(err))
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Failed to execute command: %v", err)
	}
}
