package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/spherical/pdf-inspector/cmd/pdf-inspector/ui"
	"github.com/spherical/pdf-inspector/internal/session"
	"github.com/spherical/pdf-inspector/pkg/inspector"
)

var inspectFlags struct {
	password string
	json     bool
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <pdf>",
	Short: "Show page count, encryption and page sizes of a PDF",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func init() {
	inspectCmd.Flags().StringVar(&inspectFlags.password, "password", "", "document password")
	inspectCmd.Flags().BoolVar(&inspectFlags.json, "json", false, "print JSON")
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	client, _, err := newClient(cmd.Context(), inspector.WithoutHistory())
	if err != nil {
		return err
	}
	defer client.Close()

	doc, err := client.Inspect(cmd.Context(), args[0], inspectFlags.password)
	if err != nil {
		return errors.New(session.UserMessage(err))
	}

	if inspectFlags.json {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	}

	ui.Section(doc.FilePath)
	ui.KeyValue("Pages", fmt.Sprint(doc.TotalPages))
	ui.KeyValue("Encrypted", ui.YesNo(doc.Encrypted))
	ui.Newline()

	rows := make([][]string, len(doc.Pages))
	for i, p := range doc.Pages {
		rows[i] = []string{fmt.Sprint(p.Number()), fmt.Sprintf("%.1f", p.Width), fmt.Sprintf("%.1f", p.Height)}
	}
	ui.Table([]string{"Page", "Width (pt)", "Height (pt)"}, rows)
	return nil
}
