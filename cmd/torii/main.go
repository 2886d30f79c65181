// Command torii runs the edge module agent: it bootstraps the container
// engine runtime and serves the management API until signalled.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/bdobrica/torii/internal/torii/config"
	"github.com/bdobrica/torii/internal/torii/mgmt"
	"github.com/bdobrica/torii/internal/torii/runtime/docker"
)

// shutdownGrace is how long in-flight management requests get to finish
// after a termination signal.
const shutdownGrace = 10 * time.Second

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	opts := []docker.Option{
		docker.WithLogger(log.With().Str("component", "runtime").Logger()),
		docker.WithModuleType(cfg.ModuleType),
	}
	if cfg.Engine.Network != "" {
		opts = append(opts, docker.WithNetwork(cfg.Engine.Network))
	}
	rt, err := docker.New(cfg.Engine.Endpoint, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rt.Init(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: runtime init: %v\n", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:    cfg.Listen,
		Handler: mgmt.New(rt, log.With().Str("component", "mgmt").Logger()).Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("listen", cfg.Listen).Str("engine", cfg.Engine.Endpoint).Msg("torii agent started")
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("management server shutdown")
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "Error: management server: %v\n", err)
			os.Exit(1)
		}
	}
}

// loadConfig reads the config file named by TORII_CONFIG, falling back to
// built-in defaults when the variable is unset.
func loadConfig() (*config.Config, error) {
	path := os.Getenv("TORII_CONFIG")
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	return zerolog.New(output).Level(lvl).With().Timestamp().Str("app", "torii").Logger()
}
