package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/good-yellow-bee/buildpulse/internal/models"
)

var (
	alertID         string
	alertStatus     string
	alertProject    string
	alertBy         string
	alertResolution string
	alertLimit      int
)

// alertsCmd represents the alerts command group
var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Fired alert commands",
	Long: `Commands for inspecting and working fired alerts.

Examples:
  # List active alerts
  buildpulsectl alerts list --status active

  # Acknowledge an alert
  buildpulsectl alerts ack --id <alert-id> --by alice

  # Resolve an alert
  buildpulsectl alerts resolve --id <alert-id> --by alice --resolution "flaky runner"`,
}

// alertsListCmd lists fired alerts
var alertsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List fired alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		status := models.AlertStatus(alertStatus)
		switch status {
		case "", models.AlertActive, models.AlertAcknowledged, models.AlertResolved:
		default:
			return fmt.Errorf("invalid status: %s (use: active, acknowledged, resolved)", alertStatus)
		}

		store, err := openDB()
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()
		alerts, total, err := store.Alerts().List(ctx, status, alertProject, alertLimit, 0)
		if err != nil {
			return fmt.Errorf("list alerts: %w", err)
		}

		if len(alerts) == 0 {
			fmt.Println("No alerts found.")
			return nil
		}

		// Print header
		fmt.Printf("\n%-36s  %-20s  %-16s  %-10s  %-13s  %s\n",
			"ID", "RULE", "PROJECT", "SEVERITY", "STATUS", "FIRED")
		fmt.Println(strings.Repeat("-", 112))

		for _, a := range alerts {
			fmt.Printf("%-36s  %-20s  %-16s  %-10s  %-13s  %s\n",
				a.ID,
				truncate(a.RuleName, 20),
				truncate(a.Project, 16),
				a.Severity,
				a.Status,
				a.FiredAt.Format("2006-01-02 15:04"),
			)
		}
		fmt.Printf("\nShowing %d of %d alert(s)\n", len(alerts), total)

		return nil
	},
}

// alertsAckCmd acknowledges an alert
var alertsAckCmd = &cobra.Command{
	Use:   "ack",
	Short: "Acknowledge an active alert",
	RunE: func(cmd *cobra.Command, args []string) error {
		if alertID == "" {
			return fmt.Errorf("--id is required")
		}
		if alertBy == "" {
			return fmt.Errorf("--by is required")
		}

		store, err := openDB()
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()
		if err := store.Alerts().Acknowledge(ctx, alertID, alertBy, time.Now()); err != nil {
			return err
		}

		fmt.Printf("Alert acknowledged: %s\n", alertID)
		return nil
	},
}

// alertsResolveCmd resolves an alert
var alertsResolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve an active or acknowledged alert",
	RunE: func(cmd *cobra.Command, args []string) error {
		if alertID == "" {
			return fmt.Errorf("--id is required")
		}
		if alertBy == "" {
			return fmt.Errorf("--by is required")
		}

		store, err := openDB()
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()
		if err := store.Alerts().Resolve(ctx, alertID, alertBy, alertResolution, time.Now()); err != nil {
			return err
		}

		fmt.Printf("Alert resolved: %s\n", alertID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(alertsCmd)
	alertsCmd.AddCommand(alertsListCmd)
	alertsCmd.AddCommand(alertsAckCmd)
	alertsCmd.AddCommand(alertsResolveCmd)

	alertsListCmd.Flags().StringVar(&alertStatus, "status", "", "filter by status (active, acknowledged, resolved)")
	alertsListCmd.Flags().StringVar(&alertProject, "project", "", "filter by project")
	alertsListCmd.Flags().IntVar(&alertLimit, "limit", 50, "max alerts to show")

	alertsAckCmd.Flags().StringVar(&alertID, "id", "", "alert ID (required)")
	alertsAckCmd.Flags().StringVar(&alertBy, "by", "", "operator name (required)")
	alertsAckCmd.MarkFlagRequired("id")
	alertsAckCmd.MarkFlagRequired("by")

	alertsResolveCmd.Flags().StringVar(&alertID, "id", "", "alert ID (required)")
	alertsResolveCmd.Flags().StringVar(&alertBy, "by", "", "operator name (required)")
	alertsResolveCmd.Flags().StringVar(&alertResolution, "resolution", "", "resolution note")
	alertsResolveCmd.MarkFlagRequired("id")
	alertsResolveCmd.MarkFlagRequired("by")
}
