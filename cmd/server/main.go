package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/good-yellow-bee/buildpulse/internal/metrics"
	"github.com/good-yellow-bee/buildpulse/internal/notifier"
	"github.com/good-yellow-bee/buildpulse/internal/server"
	"github.com/good-yellow-bee/buildpulse/internal/storage"
	"github.com/good-yellow-bee/buildpulse/pkg/config"
)

var (
	configFile string
	httpAddr   string
	rulesFile  string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "buildpulse-server",
	Short: "BuildPulse Server - CI/CD pipeline monitoring",
	Long: `BuildPulse Server ingests build events from CI systems, maintains
rolling metrics per project, evaluates alert rules, and serves the
dashboard API with a real-time event stream.`,
	RunE: runServer,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("buildpulse-server %s\n", config.Version)
		fmt.Printf("  commit: %s\n", config.Commit)
		fmt.Printf("  built:  %s\n", config.BuildTime)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (optional)")
	rootCmd.PersistentFlags().StringVarP(&httpAddr, "address", "a", "", "HTTP listen address (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&rulesFile, "rules", "r", "", "alert rules YAML file (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	var cfg *Config

	// Load configuration from file if provided
	if configFile != "" {
		var err error
		cfg, err = LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	} else {
		cfg = DefaultConfig()
	}

	// Override with CLI flags
	if httpAddr != "" {
		cfg.Server.HTTPAddress = httpAddr
	}
	if rulesFile != "" {
		cfg.Rules.File = rulesFile
	}
	cfg.Verbose = verbose

	// Auto-create data directory
	dbDir := filepath.Dir(cfg.Database.Path)
	if err := os.MkdirAll(dbDir, 0750); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	// Initialize storage
	store := storage.NewSQLiteStorage(cfg.Database.Path)
	if err := store.Open(); err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	log.Printf("database initialized at %s", cfg.Database.Path)

	metrics.SetBuildInfo(config.Version, config.Commit, config.BuildTime)

	srv, err := server.New(&server.Config{
		HTTPAddress:       cfg.Server.HTTPAddress,
		MetricsAddress:    cfg.Server.MetricsAddress,
		RulesFile:         cfg.Rules.File,
		RateLimitPerIP:    cfg.Server.RateLimitPerIP,
		StreamMaxDuration: cfg.Server.StreamMaxDuration,
		SMTP: notifier.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		},
		Verbose: cfg.Verbose,
	}, store)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	// Setup signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("received signal %v, shutting down...", sig)
		cancel()
	}()

	// Run server
	log.Printf("starting buildpulse-server %s", config.Version)
	log.Printf("HTTP listening on %s", cfg.Server.HTTPAddress)

	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("run server: %w", err)
	}

	log.Printf("server stopped")
	return nil
}
