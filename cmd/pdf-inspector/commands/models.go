package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/spherical/pdf-inspector/cmd/pdf-inspector/ui"
	"github.com/spherical/pdf-inspector/internal/modelcache"
	"github.com/spherical/pdf-inspector/internal/session"
	"github.com/spherical/pdf-inspector/pkg/inspector"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Manage the cached recognition weights used by the tesseract-best engine",
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached weights",
	Args:  cobra.NoArgs,
	RunE:  runModelsList,
}

var modelsDownloadCmd = &cobra.Command{
	Use:   "download <lang>...",
	Short: "Download weights for one or more languages",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runModelsDownload,
}

var modelsRemoveCmd = &cobra.Command{
	Use:   "remove <lang>...",
	Short: "Delete cached weights",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runModelsRemove,
}

func init() {
	modelsCmd.AddCommand(modelsListCmd, modelsDownloadCmd, modelsRemoveCmd)
	rootCmd.AddCommand(modelsCmd)
}

func runModelsList(cmd *cobra.Command, args []string) error {
	client, _, err := newClient(cmd.Context(), inspector.WithoutHistory())
	if err != nil {
		return err
	}
	defer client.Close()

	cache := client.Models()
	models, err := cache.List()
	if err != nil {
		return err
	}
	if len(models) == 0 {
		ui.Info("No weights cached in %s", cache.TessdataDir())
		return nil
	}

	ui.Section("Cached weights")
	rows := make([][]string, len(models))
	for i, m := range models {
		rows[i] = []string{m.Language, ui.FormatBytes(m.Size), m.Modified.Local().Format("2006-01-02 15:04"), m.Path}
	}
	ui.Table([]string{"Language", "Size", "Modified", "Path"}, rows)
	return nil
}

func runModelsDownload(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	client, _, err := newClient(ctx, inspector.WithoutHistory())
	if err != nil {
		return err
	}
	defer client.Close()

	cache := client.Models()
	for _, lang := range args {
		if cache.Present(lang) {
			ui.Info("%s already cached at %s", lang, cache.Path(lang))
			continue
		}
		spin := ui.NewSpinner(fmt.Sprintf("Downloading %s weights...", lang))
		spin.Start()
		dctx := modelcache.WithRetryNotifier(ctx, func(attempt, maxRetries int, backoff time.Duration, err error) {
			spin.UpdateMessage(fmt.Sprintf("Downloading %s weights (attempt %d of %d failed: %v, retrying in %s)...",
				lang, attempt, maxRetries+1, err, ui.FormatDuration(backoff)))
		})
		_, err := cache.Ensure(dctx, lang)
		spin.Stop()
		if err != nil {
			return errors.New(session.UserMessage(err))
		}
		ui.Success("Cached %s at %s", lang, cache.Path(lang))
	}
	return nil
}

func runModelsRemove(cmd *cobra.Command, args []string) error {
	client, _, err := newClient(cmd.Context(), inspector.WithoutHistory())
	if err != nil {
		return err
	}
	defer client.Close()

	cache := client.Models()
	for _, lang := range args {
		if !cache.Present(lang) {
			ui.Warning("%s is not cached", lang)
			continue
		}
		if err := cache.Remove(lang); err != nil {
			return errors.New(session.UserMessage(err))
		}
		ui.Success("Removed %s", lang)
	}
	return nil
}
