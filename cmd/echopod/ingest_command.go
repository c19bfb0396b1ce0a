package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"echopod/internal/config"
)

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var title string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ingest <audio-file>",
		Short: "Upload an episode for transcription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read audio file: %w", err)
			}

			podcast, created, err := ctx.client().Upload(cmd.Context(), filepath.Base(path), title, data)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, map[string]any{"podcast": podcast, "created": created})
			}

			out := cmd.OutOrStdout()
			if !created {
				fmt.Fprintf(out, "Episode already in the library as %q (%s)\n", podcast.Title, shortID(podcast.ID))
				return nil
			}
			fmt.Fprintf(out, "Accepted %q (%s), transcription queued\n", podcast.Title, shortID(podcast.ID))
			fmt.Fprintf(out, "Track progress with `echopod show %s`\n", shortID(podcast.ID))
			return nil
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "Episode title (defaults to a title derived from the filename)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON output")
	return cmd
}
