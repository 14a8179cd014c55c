package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/good-yellow-bee/buildpulse/internal/alerting"
	"github.com/good-yellow-bee/buildpulse/internal/models"
	"github.com/good-yellow-bee/buildpulse/internal/server"
	"github.com/good-yellow-bee/buildpulse/internal/storage"
)

var (
	ruleID    string
	ruleName  string
	rulesPath string
	ruleForce bool
)

// rulesCmd represents the rules command group
var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Alert rule management commands",
	Long: `Commands for managing BuildPulse alert rules.

These commands operate directly on the database file. A running server
picks mutations up on its next rule cache reload.

Examples:
  # List all rules
  buildpulsectl rules list

  # Seed or update rules from a YAML file
  buildpulsectl rules load --file configs/rules.yaml

  # Enable or disable a rule
  buildpulsectl rules enable --name slow-builds
  buildpulsectl rules disable --name slow-builds

  # Delete a rule
  buildpulsectl rules delete --name slow-builds`,
}

// rulesListCmd lists all rules
var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all alert rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openDB()
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()
		rules, err := store.Rules().List(ctx)
		if err != nil {
			return fmt.Errorf("list rules: %w", err)
		}

		if len(rules) == 0 {
			fmt.Println("No rules found.")
			return nil
		}

		// Print header
		fmt.Printf("\n%-36s  %-24s  %-20s  %-8s  %-10s  %s\n",
			"ID", "NAME", "CONDITION", "ENABLED", "SEVERITY", "COOLDOWN")
		fmt.Println(strings.Repeat("-", 112))

		for _, r := range rules {
			fmt.Printf("%-36s  %-24s  %-20s  %-8v  %-10s  %dm\n",
				r.ID,
				truncate(r.Name, 24),
				r.Condition.Type,
				r.Enabled,
				r.Severity,
				r.CooldownMinutes,
			)
		}
		fmt.Printf("\nTotal: %d rule(s)\n", len(rules))

		return nil
	},
}

// rulesLoadCmd seeds rules from a YAML file
var rulesLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Seed or update rules from a YAML file",
	Long: `Load alert rules from a YAML file, upserting each rule by name.

Existing rules keep their ID and creation time. Rules created through
the API and absent from the file are left alone.

Example:
  buildpulsectl rules load --file configs/rules.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if rulesPath == "" {
			return fmt.Errorf("--file is required")
		}

		store, err := openDB()
		if err != nil {
			return err
		}
		defer store.Close()

		registry := alerting.NewStoreRegistry(store.Rules())
		if err := server.SeedRules(context.Background(), store.Rules(), registry, rulesPath); err != nil {
			return err
		}
		return nil
	},
}

// rulesEnableCmd enables a rule
var rulesEnableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Enable a rule",
	RunE: func(cmd *cobra.Command, args []string) error {
		return setRuleEnabled(true)
	},
}

// rulesDisableCmd disables a rule
var rulesDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Disable a rule",
	RunE: func(cmd *cobra.Command, args []string) error {
		return setRuleEnabled(false)
	},
}

// rulesDeleteCmd deletes a rule
var rulesDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a rule",
	Long: `Delete an alert rule. Already-fired alerts keep their rule name.

Examples:
  buildpulsectl rules delete --name slow-builds
  buildpulsectl rules delete --name slow-builds --force  # skip confirmation`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openDB()
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()
		rule, err := resolveRule(ctx, store)
		if err != nil {
			return err
		}

		if !ruleForce {
			fmt.Printf("Delete rule '%s'? [y/N]: ", rule.Name)
			var confirm string
			fmt.Scanln(&confirm)
			if !strings.EqualFold(confirm, "y") {
				fmt.Println("Canceled.")
				return nil
			}
		}

		if err := store.Rules().Delete(ctx, rule.ID); err != nil {
			return fmt.Errorf("delete rule: %w", err)
		}

		fmt.Printf("Rule deleted: %s\n", rule.Name)
		return nil
	},
}

func setRuleEnabled(enabled bool) error {
	store, err := openDB()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	rule, err := resolveRule(ctx, store)
	if err != nil {
		return err
	}

	if err := store.Rules().SetEnabled(ctx, rule.ID, enabled); err != nil {
		return fmt.Errorf("update rule: %w", err)
	}

	state := "disabled"
	if enabled {
		state = "enabled"
	}
	fmt.Printf("Rule %s: %s\n", state, rule.Name)
	return nil
}

// resolveRule finds a rule by name or ID (ID takes precedence).
func resolveRule(ctx context.Context, store *storage.SQLiteStorage) (*models.AlertRule, error) {
	if ruleID == "" && ruleName == "" {
		return nil, fmt.Errorf("specify --name or --id")
	}
	if ruleID != "" {
		r, err := store.Rules().GetByID(ctx, ruleID)
		if err != nil {
			return nil, fmt.Errorf("get rule: %w", err)
		}
		if r == nil {
			return nil, fmt.Errorf("rule not found: %s", ruleID)
		}
		return r, nil
	}
	r, err := store.Rules().GetByName(ctx, ruleName)
	if err != nil {
		return nil, fmt.Errorf("get rule: %w", err)
	}
	if r == nil {
		return nil, fmt.Errorf("rule not found: %s", ruleName)
	}
	return r, nil
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesLoadCmd)
	rulesCmd.AddCommand(rulesEnableCmd)
	rulesCmd.AddCommand(rulesDisableCmd)
	rulesCmd.AddCommand(rulesDeleteCmd)

	rulesLoadCmd.Flags().StringVar(&rulesPath, "file", "", "rules YAML file (required)")
	rulesLoadCmd.MarkFlagRequired("file")

	for _, c := range []*cobra.Command{rulesEnableCmd, rulesDisableCmd, rulesDeleteCmd} {
		c.Flags().StringVar(&ruleName, "name", "", "rule name")
		c.Flags().StringVar(&ruleID, "id", "", "rule ID")
	}
	rulesDeleteCmd.Flags().BoolVar(&ruleForce, "force", false, "skip confirmation prompt")
}
