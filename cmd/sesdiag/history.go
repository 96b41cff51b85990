package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sigreer/sesdiag/internal/db"
	"github.com/sigreer/sesdiag/internal/enclosure"
	"github.com/sigreer/sesdiag/internal/ses"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded element changes and alerts",
	Long: `Show element status changes and alerts recorded by "sesdiag watch".

Examples:
  sesdiag history                      # recent changes, all enclosures
  sesdiag history --device /dev/sg3 --limit 50
  sesdiag history --alerts             # unacknowledged alerts
  sesdiag history --alerts --all       # every alert
  sesdiag history --ack 12             # acknowledge alert 12
  sesdiag history --ack-all`,
	Args: maxArgs(0),
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "maximum number of entries")
	historyCmd.Flags().Bool("alerts", false, "show alerts instead of changes")
	historyCmd.Flags().Bool("all", false, "with --alerts, include acknowledged alerts")
	historyCmd.Flags().String("severity", "", "with --alerts --all, only this severity")
	historyCmd.Flags().Int64("ack", 0, "acknowledge the alert with this ID")
	historyCmd.Flags().Bool("ack-all", false, "acknowledge every open alert")
	historyCmd.Flags().Bool("json", false, "Output as JSON")
	historyCmd.MarkFlagsMutuallyExclusive("ack", "ack-all")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	alerts, _ := cmd.Flags().GetBool("alerts")
	all, _ := cmd.Flags().GetBool("all")
	severity, _ := cmd.Flags().GetString("severity")
	ackID, _ := cmd.Flags().GetInt64("ack")
	ackAll, _ := cmd.Flags().GetBool("ack-all")
	jsonOut, _ := cmd.Flags().GetBool("json")

	if _, err := os.Stat(cfg.History.Path); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("no history at %s (enable history in the config and run sesdiag watch)", cfg.History.Path)
	}
	database, err := db.New(cfg.History.Path)
	if err != nil {
		return err
	}
	defer database.Close()

	switch {
	case ackID > 0:
		if err := database.AcknowledgeAlert(ackID); err != nil {
			return err
		}
		fmt.Printf("Alert %d acknowledged\n", ackID)
		return nil
	case ackAll:
		n, err := database.AcknowledgeAllAlerts()
		if err != nil {
			return err
		}
		fmt.Printf("%s alerts acknowledged\n", humanize.Comma(n))
		return nil
	case alerts:
		return showAlerts(database, all, severity, limit, jsonOut)
	}

	events, err := database.GetRecentEvents(cfg.Device, limit)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(events)
	}
	if len(events) == 0 {
		fmt.Println("No changes recorded")
		return nil
	}
	fmt.Printf("%-16s %-12s %-30s %-16s %s\n", "WHEN", "DEVICE", "ELEMENT", "FROM", "TO")
	for _, ev := range events {
		t := enclosure.Target{Type: ses.ElementType(ev.ElementType), Group: ev.TypeGroup, Index: ev.ElementIndex}
		fmt.Printf("%-16s %-12s %-30s %-16s %s\n",
			humanize.Time(ev.Timestamp), ev.Device, t, orDash(ev.OldStatus), orDash(ev.NewStatus))
	}
	return nil
}

func showAlerts(database *db.DB, all bool, severity string, limit int, jsonOut bool) error {
	var (
		list []*db.Alert
		err  error
	)
	if all {
		list, err = database.GetAlerts(severity, limit)
	} else {
		list, err = database.GetUnacknowledgedAlerts()
	}
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(list)
	}

	total, unacked, critical, warning, err := database.AlertCount()
	if err != nil {
		return err
	}
	fmt.Printf("Alerts: %d total, %d open (%d critical, %d warning)\n\n", total, unacked, critical, warning)
	if len(list) == 0 {
		return nil
	}
	fmt.Printf("%-6s %-16s %-9s %-18s %-12s %s\n", "ID", "WHEN", "SEVERITY", "CATEGORY", "DEVICE", "MESSAGE")
	for _, a := range list {
		ack := ""
		if a.Acknowledged {
			ack = " (ack)"
		}
		fmt.Printf("%-6d %-16s %-9s %-18s %-12s %s%s\n",
			a.ID, humanize.Time(a.Timestamp), a.Severity, a.Category, a.Device, a.Message, ack)
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
