package commands

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/spherical/pdf-inspector/cmd/pdf-inspector/ui"
	"github.com/spherical/pdf-inspector/pkg/inspector"
)

var backendsJSON bool

var backendsCmd = &cobra.Command{
	Use:   "backends",
	Short: "List the extraction backends and whether each mode can run here",
	Args:  cobra.NoArgs,
	RunE:  runBackends,
}

var probeCmd = &cobra.Command{
	Use:   "probe [executable...]",
	Short: "Look up external executables on the search path",
	Long: `Without arguments, probe every executable a backend needs. With
arguments, probe those names as alternatives of one requirement.`,
	RunE: runProbe,
}

func init() {
	backendsCmd.Flags().BoolVar(&backendsJSON, "json", false, "print JSON")
	rootCmd.AddCommand(backendsCmd)
	rootCmd.AddCommand(probeCmd)
}

func runBackends(cmd *cobra.Command, args []string) error {
	client, _, err := newClient(cmd.Context(), inspector.WithoutHistory())
	if err != nil {
		return err
	}
	defer client.Close()

	statuses := client.Backends()
	if backendsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(statuses)
	}

	ui.Section("Backends")
	ui.Table([]string{"Backend", "Family", "Mode", "Available", "Missing"}, backendRows(statuses))
	return nil
}

func backendRows(statuses []inspector.BackendStatus) [][]string {
	var rows [][]string
	for _, b := range statuses {
		for i, m := range b.Modes {
			name, family := string(b.Name), string(b.Family)
			if i > 0 {
				name, family = "", ""
			}
			rows = append(rows, []string{name, family, string(m.Mode), ui.YesNo(m.Available), strings.Join(m.Missing, ", ")})
		}
	}
	return rows
}

func runProbe(cmd *cobra.Command, args []string) error {
	client, _, err := newClient(cmd.Context(), inspector.WithoutHistory())
	if err != nil {
		return err
	}
	defer client.Close()

	p := client.Probe()
	if len(args) > 0 {
		r := p.Probe(args...)
		if !r.Available {
			ui.Error("None of %s found", strings.Join(args, ", "))
			return nil
		}
		ui.Success("%s", r.Path)
		return nil
	}

	ui.Section("External dependencies")
	seen := make(map[string]bool)
	var rows [][]string
	for _, a := range client.Registry().List() {
		for _, m := range a.Modes() {
			for _, req := range a.Requirements(m) {
				key := req.Name + "\x00" + strings.Join(req.Executables, ",")
				if seen[key] {
					continue
				}
				seen[key] = true
				r := p.Probe(req.Executables...)
				path := r.Path
				if !r.Available {
					path = "not found"
				}
				rows = append(rows, []string{req.Name, string(a.Name()), strings.Join(req.Executables, ", "), path})
			}
		}
	}
	ui.Table([]string{"Requirement", "Backend", "Candidates", "Resolved"}, rows)
	return nil
}
