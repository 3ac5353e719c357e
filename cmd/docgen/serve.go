package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"docgen-workers/internal/api"
	"docgen-workers/internal/app"
	"docgen-workers/internal/common/camunda"
	"docgen-workers/internal/common/config"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveNoWorkers bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the Zeebe job workers",
	Long: `Start the document API. When camunda.enabled is set the process also
connects to the Zeebe gateway and opens every enabled job worker.

Examples:
  docgen serve
  docgen serve --config configs/config.yaml --no-workers`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveNoWorkers, "no-workers", false, "serve HTTP only, even when camunda.enabled is set")
}

// retryWithBackoff runs operation up to maxRetries times, doubling the delay
// after each failure.
func retryWithBackoff(ctx context.Context, operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		if err = operation(); err == nil {
			return nil
		}
		if i == maxRetries-1 {
			break
		}
		log.Warn(operationName+" failed, retrying",
			zap.Error(err),
			zap.Int("attempt", i+1),
			zap.Int("maxRetries", maxRetries),
			zap.Duration("nextRetryIn", delay),
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
	}
	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	zapLog, log := newLoggers(cfg)
	defer zapLog.Sync()

	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	a.Start(ctx)

	var (
		zeebe   *camunda.Client
		workers []*camunda.CamundaWorker
	)
	if cfg.Camunda.Enabled && !serveNoWorkers {
		err = retryWithBackoff(ctx, func() error {
			var err error
			zeebe, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
				GatewayAddress:         cfg.Camunda.BrokerAddress,
				UsePlaintextConnection: true,
				ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
			})
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			a.Close(context.Background())
			return err
		}
		zapLog.Info("Zeebe client connected", zap.String("gateway", cfg.Camunda.BrokerAddress))

		workers, err = a.StartWorkers(zeebe, zapLog)
		if err != nil {
			zeebe.Close()
			a.Close(context.Background())
			return err
		}
		zapLog.Info("job workers registered", zap.Int("count", len(workers)))
	}

	srv := api.NewHTTPServer(cfg.Server, a.Router)
	serveErr := make(chan error, 1)
	go func() {
		zapLog.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		zapLog.Info("shutdown signal received")
	case err = <-serveErr:
		if err != nil {
			zapLog.Error("HTTP server failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()

	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		zapLog.Warn("HTTP shutdown incomplete", zap.Error(shutdownErr))
	}
	for _, w := range workers {
		w.Stop()
	}
	if zeebe != nil {
		zeebe.Close()
	}
	if closeErr := a.Close(shutdownCtx); closeErr != nil {
		zapLog.Warn("pipeline shutdown incomplete", zap.Error(closeErr))
	}
	zapLog.Info("docgen stopped")
	return err
}
