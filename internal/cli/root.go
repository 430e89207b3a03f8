package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/rrol/internal/control"
	"github.com/vietddude/rrol/internal/core/config"
)

var (
	cfgPath string
	isDebug bool
	timeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "rrol",
	Short: "Resilient storefront client and failure report intake",
	Long: `rrol runs storefront operations with classified retries and fallbacks,
reports failures, and serves the endpoint that collects those reports.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 60*time.Second, "overall timeout for one-shot commands")
}

// loadConfig reads .env and the config file, then sets up logging. A
// missing default config file is not an error.
func loadConfig(cmd *cobra.Command) (*config.AppConfig, error) {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if errors.Is(err, fs.ErrNotExist) && !cmd.Flags().Changed("config") {
		cfg, err = config.Default(), nil
	}
	if err != nil {
		// Fall back to default logger for config load errors
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		return nil, err
	}

	// Setup logging
	slogLevel := slog.LevelInfo
	if isDebug || cfg.Logging.Level == "debug" {
		slogLevel = slog.LevelDebug
	}

	stylelog.InitDefault(&tint.Options{
		Level:      slogLevel,
		TimeFormat: time.RFC3339,
	})
	return cfg, nil
}

// runOneShot builds the client side of the app, runs fn and prints its
// result as JSON. Pending failure reports are flushed before returning.
func runOneShot(cmd *cobra.Command, fn func(ctx context.Context, app *control.App) any) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	app, err := control.New(cfg)
	if err != nil {
		slog.Error("Failed to initialize", "error", err)
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	result := fn(ctx, app)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil {
		slog.Warn("Error during shutdown", "error", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return nil
}
