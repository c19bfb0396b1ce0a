package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newPodcastsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "podcasts",
		Short: "List podcasts in the library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			podcasts, err := ctx.client().Podcasts(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, map[string]any{"podcasts": podcasts})
			}

			out := cmd.OutOrStdout()
			if len(podcasts) == 0 {
				fmt.Fprintln(out, "No podcasts in the library")
				return nil
			}
			fmt.Fprintln(out, podcastTable(podcasts))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON output")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <podcast-id>",
		Short: "Show details for a podcast",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolvePodcastID(cmd, ctx, args[0])
			if err != nil {
				return err
			}
			podcast, err := ctx.client().Podcast(cmd.Context(), id)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, podcast)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:       %s\n", podcast.ID)
			fmt.Fprintf(out, "Title:    %s\n", podcast.Title)
			fmt.Fprintf(out, "Duration: %s\n", formatDuration(podcast.DurationSeconds))
			fmt.Fprintf(out, "Status:   %s\n", podcast.Status)
			if podcast.ErrorMessage != "" {
				fmt.Fprintf(out, "Error:    %s\n", podcast.ErrorMessage)
			}
			fmt.Fprintf(out, "Added:    %s\n", formatTimestamp(podcast.CreatedAt))
			fmt.Fprintf(out, "Updated:  %s\n", formatTimestamp(podcast.UpdatedAt))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON output")
	return cmd
}

func newTranscriptCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "transcript <podcast-id>",
		Short: "Print a podcast's transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolvePodcastID(cmd, ctx, args[0])
			if err != nil {
				return err
			}
			transcript, err := ctx.client().Transcript(cmd.Context(), id)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, transcript)
			}

			out := cmd.OutOrStdout()
			if len(transcript.Segments) == 0 {
				fmt.Fprintln(out, "No transcript available yet")
				return nil
			}
			for _, segment := range transcript.Segments {
				fmt.Fprintf(out, "[%s - %s] %s\n",
					formatClock(segment.StartSeconds),
					formatClock(segment.EndSeconds),
					segment.Text,
				)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON output")
	return cmd
}

func newAnswersCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "answers <podcast-id>",
		Short: "List cached answers for a podcast",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolvePodcastID(cmd, ctx, args[0])
			if err != nil {
				return err
			}
			answers, err := ctx.client().Answers(cmd.Context(), id)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, map[string]any{"answers": answers})
			}

			out := cmd.OutOrStdout()
			if len(answers) == 0 {
				fmt.Fprintln(out, "No answers cached for this podcast")
				return nil
			}
			for i, answer := range answers {
				if i > 0 {
					fmt.Fprintln(out)
				}
				fmt.Fprintf(out, "Q: %s\n", answer.Question)
				fmt.Fprintf(out, "A: %s\n", answer.Answer)
				fmt.Fprintf(out, "   fingerprint %s, %d segment(s), %s\n",
					shortID(answer.Fingerprint), len(answer.SegmentSeqs), formatTimestamp(answer.CreatedAt))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON output")
	return cmd
}

func newDeleteCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <podcast-id>",
		Short: "Delete a podcast and its derived artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolvePodcastID(cmd, ctx, args[0])
			if err != nil {
				return err
			}
			if err := ctx.client().Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Podcast %s deleted\n", shortID(id))
			return nil
		},
	}
	return cmd
}

// resolvePodcastID accepts either a full podcast id or a unique prefix of one,
// so listings can show truncated ids that remain usable as arguments.
func resolvePodcastID(cmd *cobra.Command, ctx *commandContext, arg string) (string, error) {
	if len(arg) == 64 {
		return arg, nil
	}
	podcasts, err := ctx.client().Podcasts(cmd.Context())
	if err != nil {
		return "", err
	}
	var match string
	for _, podcast := range podcasts {
		if !strings.HasPrefix(podcast.ID, arg) {
			continue
		}
		if match != "" {
			return "", fmt.Errorf("podcast id prefix %q is ambiguous", arg)
		}
		match = podcast.ID
	}
	if match == "" {
		return "", fmt.Errorf("no podcast matches id %q", arg)
	}
	return match, nil
}

