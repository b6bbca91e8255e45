// Package cli holds the imagemerger commands.
package cli

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func NewRootCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "imagemerger",
		Short: "Composite stickers onto photos and upload the result",
		Long: `imagemerger scales a base photo to a display width and pixel density,
draws sticker images on top of it, encodes the result as PNG, JPEG or GIF
and uploads it to a remote endpoint.

Run it as an HTTP API for a mobile web view (serve) or headless from a
YAML layout (merge).`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMergeCmd())

	return cmd
}
