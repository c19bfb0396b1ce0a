package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"echopod/internal/config"
)

func newAskCommand(ctx *commandContext) *cobra.Command {
	var audioPath string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ask <podcast-id> <question...>",
		Short: "Ask a question about a podcast",
		Long: "Ask a question about a transcribed podcast. The answer is grounded in the\n" +
			"episode's transcript and cached, so repeating a question is instant.",
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolvePodcastID(cmd, ctx, args[0])
			if err != nil {
				return err
			}
			question := strings.TrimSpace(strings.Join(args[1:], " "))

			client := ctx.client()
			answer, err := client.Ask(cmd.Context(), id, question)
			if err != nil {
				return err
			}

			if audioPath != "" {
				data, err := client.AnswerAudio(cmd.Context(), answer.Fingerprint)
				if err != nil {
					return fmt.Errorf("fetch answer audio: %w", err)
				}
				target, err := config.ExpandPath(audioPath)
				if err != nil {
					return err
				}
				if err := os.WriteFile(target, data, 0o644); err != nil {
					return fmt.Errorf("write answer audio: %w", err)
				}
				if asJSON {
					return writeJSON(cmd, map[string]any{"answer": answer, "audio_file": target})
				}
				fmt.Fprintln(cmd.OutOrStdout(), answer.Answer)
				fmt.Fprintf(cmd.OutOrStdout(), "\nSpoken answer written to %s\n", target)
				return nil
			}

			if asJSON {
				return writeJSON(cmd, answer)
			}
			fmt.Fprintln(cmd.OutOrStdout(), answer.Answer)
			return nil
		},
	}

	cmd.Flags().StringVar(&audioPath, "audio", "", "Write the spoken answer to this file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON output")
	return cmd
}
