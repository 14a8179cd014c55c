// Package cmd contains the CLI commands for buildpulsectl.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/good-yellow-bee/buildpulse/internal/storage"
)

// defaultDBPath is the default database path, can be overridden via BUILDPULSE_DB_PATH env var
var defaultDBPath = "data/buildpulse.db"

func init() {
	if envPath := os.Getenv("BUILDPULSE_DB_PATH"); envPath != "" {
		defaultDBPath = envPath
	}
}

var (
	// Used for flags
	verbose bool
	dbPath  string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "buildpulsectl",
	Short: "BuildPulse - CI/CD monitoring administration",
	Long: `buildpulsectl administers a BuildPulse deployment by operating
directly on its database file.

Examples:
  # List alert rules
  buildpulsectl rules list

  # Seed rules from a YAML file
  buildpulsectl rules load --file configs/rules.yaml

  # List active alerts
  buildpulsectl alerts list --status active

  # Acknowledge an alert
  buildpulsectl alerts ack --id <alert-id> --by alice

  # Show project build status
  buildpulsectl projects list`,
	// Run when no subcommand is specified
	Run: func(cmd *cobra.Command, args []string) {
		// Show help by default
		cmd.Help()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", defaultDBPath, "path to SQLite database file")
}

// openDB opens the SQLite database and runs pending migrations.
func openDB() (*storage.SQLiteStorage, error) {
	store := storage.NewSQLiteStorage(dbPath)
	if err := store.Open(); err != nil {
		return nil, fmt.Errorf("open database at %s: %w", dbPath, err)
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return store, nil
}

// truncate truncates a string to the given length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-2] + ".."
}
