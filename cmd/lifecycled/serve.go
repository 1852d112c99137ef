package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"auction-lifecycle/internal/api/handlers"
	"auction-lifecycle/internal/services"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the periodic trigger and the ops API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			log := a.log

			scheduler := services.NewCronLifecycleScheduler(a.driver, a.cfg.Lifecycle.PassInterval, log)
			if err := scheduler.Start(ctx); err != nil {
				return fmt.Errorf("start scheduler: %w", err)
			}

			e := echo.New()
			e.HideBanner = true
			e.HidePort = true
			e.Use(middleware.RequestID())
			e.Use(middleware.Recover())
			e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
				return func(c echo.Context) error {
					req := c.Request()
					log.Debug("Request received",
						"method", req.Method,
						"path", req.URL.Path,
						"remote_addr", c.RealIP())
					return next(c)
				}
			})
			ops := handlers.NewOpsHandler(a.driver, a.admin, "lifecycled", log)
			if a.lease != nil {
				ops.SetLeaseInspector(a.lease)
			}
			ops.RegisterRoutes(e)

			serverAddr := fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port)
			log.Info("Starting ops server", "address", serverAddr)

			serverErr := make(chan error, 1)
			go func() {
				if err := e.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			select {
			case <-ctx.Done():
			case err = <-serverErr:
				log.Error("Server failed", "error", err)
			}

			log.Info("Shutting down lifecycle service...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if err := e.Shutdown(shutdownCtx); err != nil {
				log.Error("Server forced to shutdown", "error", err)
			}
			if err := scheduler.Stop(); err != nil {
				log.Error("Failed to stop scheduler", "error", err)
			}

			log.Info("Lifecycle service stopped")
			return err
		},
	}
}
