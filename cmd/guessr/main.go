// Command guessr runs the Grocery Guessr game API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/L-Mariam/Grocery-Guessr/core"
	"github.com/L-Mariam/Grocery-Guessr/game"
	"github.com/L-Mariam/Grocery-Guessr/internal/httpapi"
	"github.com/L-Mariam/Grocery-Guessr/store"
	"github.com/L-Mariam/Grocery-Guessr/telemetry"
)

func main() {
	configPath := flag.String("config", os.Getenv("GUESSR_CONFIG_FILE"), "path to a .yaml or .json config file")
	devMode := flag.Bool("dev", false, "development mode: text logs, debug level")
	flag.Parse()

	var opts []core.Option
	if *configPath != "" {
		opts = append(opts, core.WithConfigFile(*configPath))
	}
	if *devMode {
		opts = append(opts, core.WithDevelopmentMode(true))
	}

	cfg, err := core.NewConfig(opts...)
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("guessr: %v", err)
	}
}

func run(ctx context.Context, cfg *core.Config) error {
	logger := core.NewProductionLogger(cfg.Logging, cfg.Development, cfg.Name)

	opts := []game.Option{
		game.WithLogger(logger),
		game.WithRules(cfg.Game),
	}

	var tel core.Telemetry
	if cfg.Telemetry.Enabled {
		if cfg.Telemetry.ServiceName == "" {
			cfg.Telemetry.ServiceName = cfg.Name
		}
		provider, err := telemetry.New(ctx, cfg.Telemetry, telemetry.WithLogger(logger.WithComponent("telemetry")))
		if err != nil {
			return fmt.Errorf("failed to start telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := provider.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Telemetry shutdown error", map[string]interface{}{"error": err})
			}
		}()
		opts = append(opts, game.WithTelemetry(provider))
		tel = provider
	}

	st, err := store.New(ctx, cfg.Memory, logger.WithComponent("store"), tel)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.Memory.Provider, err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Warn("Store close failed", map[string]interface{}{"error": err})
		}
	}()

	manager := game.NewManager(st, opts...)
	server := httpapi.NewServer(manager, cfg, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	logger.Info("Grocery Guessr started", map[string]interface{}{
		"port":          cfg.Port,
		"store":         cfg.Memory.Provider,
		"telemetry":     cfg.Telemetry.Enabled,
		"version":       core.Version,
		"post_cooldown": cfg.Game.PostCooldown.String(),
		"guess_cap":     cfg.Game.GuessCap,
	})

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down gracefully", nil)
	if err := server.Stop(context.Background()); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			logger.Error("Shutdown timeout exceeded, dropping open connections", nil)
			return nil
		}
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}
