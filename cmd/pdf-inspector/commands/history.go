package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/spherical/pdf-inspector/cmd/pdf-inspector/ui"
	"github.com/spherical/pdf-inspector/internal/history"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent extraction runs",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to show")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	client, _, err := newClient(cmd.Context())
	if err != nil {
		return err
	}
	defer client.Close()

	runs, err := client.History().Recent(cmd.Context(), historyLimit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	if len(runs) == 0 {
		ui.Info("No runs recorded yet")
		return nil
	}

	ui.Section("Recent runs")
	ui.Table([]string{"When", "Document", "Backend", "Mode", "Status", "Tables", "Duration"}, historyRows(runs))
	return nil
}

func historyRows(runs []*history.Run) [][]string {
	rows := make([][]string, len(runs))
	for i, r := range runs {
		mode := string(r.RequestedMode)
		if r.FallbackApplied {
			mode = fmt.Sprintf("%s -> %s", r.RequestedMode, r.EffectiveMode)
		}
		status := r.Status
		if r.ErrorKind != "" {
			status = fmt.Sprintf("%s (%s)", r.Status, r.ErrorKind)
		}
		rows[i] = []string{
			r.CreatedAt.Local().Format(time.DateTime),
			r.Document,
			string(r.Backend),
			mode,
			status,
			fmt.Sprint(r.Tables),
			ui.FormatDuration(time.Duration(r.DurationMS) * time.Millisecond),
		}
	}
	return rows
}
