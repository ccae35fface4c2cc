package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jo-hoe/gophotobooth/internal/backend"
	"github.com/jo-hoe/gophotobooth/internal/common"
	"github.com/jo-hoe/gophotobooth/internal/core"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const shutdownTimeout = 10 * time.Second

func getConfigPath() string {
	if configPath := os.Getenv("CONFIG_PATH"); configPath != "" {
		return configPath
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(cwd, "config.yaml")
}

// newLogger reads LOG_LEVEL (debug, info, warn, error) and LOG_FORMAT (text, json).
func newLogger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(os.Getenv("LOG_LEVEL"))); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func main() {
	// .env is optional; real environment variables win
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env file", "error", err)
	}
	slog.SetDefault(newLogger())

	if err := run(); err != nil {
		slog.Error("photobooth server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := getConfigPath()
	config, err := core.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config %s: %w", configPath, err)
	}

	coreService, err := core.NewCoreService(config)
	if err != nil {
		return fmt.Errorf("failed to initialize core service: %w", err)
	}
	defer func() {
		if err := coreService.Close(); err != nil {
			slog.Error("core service close error", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	coreService.Start(ctx)

	server := defineServer(config)
	backend.NewAPIService(config, coreService).SetRoutes(server)

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting server", "port", config.Port, "transport", config.Printer.Transport, "venue", config.Venue.ID)
		if err := server.Start(fmt.Sprintf(":%d", config.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func defineServer(config *core.ServiceConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/probe"
		},
		LogStatus:    true,
		LogLatency:   true,
		LogMethod:    true,
		LogURI:       true,
		LogError:     true,
		LogRoutePath: true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"route", v.RoutePath,
				"status", v.Status,
				"latency", v.Latency,
			}
			switch {
			case v.Error != nil:
				slog.Error("request failed", append(attrs, "uri", v.URI, "error", v.Error)...)
			case strings.HasPrefix(v.RoutePath, "/api/photos/:id/image"):
				// the kiosk polls thumbnails constantly
				slog.Debug("request", attrs...)
			default:
				slog.Info("request", attrs...)
			}
			return nil
		},
	}))

	e.Use(middleware.Recover())
	e.Pre(middleware.RemoveTrailingSlash())
	if len(config.AllowedOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: config.AllowedOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		}))
	}
	// captured photos arrive as base64 data URLs
	e.Use(middleware.BodyLimit("25M"))

	e.Validator = common.NewGenericEchoValidator()

	return e
}
