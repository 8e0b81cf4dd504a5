package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newFeedCommand(ctx *commandContext) *cobra.Command {
	feedCmd := &cobra.Command{
		Use:   "feed",
		Short: "Inspect and rebuild generated feeds",
	}
	feedCmd.AddCommand(&cobra.Command{
		Use:   "regenerate",
		Short: "Queue a rebuild of the manual and merged feeds",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.intake()
			if err != nil {
				return err
			}
			job, err := svc.RegenerateFeeds(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queued %s job %d\n", job.Kind, job.ID)
			return nil
		},
	})
	feedCmd.AddCommand(newFeedInfoCommand(ctx))
	return feedCmd
}

func newFeedInfoCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show feed locations and subscription URLs",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			cfg := ctx.config
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			for _, line := range renderSectionHeader("Manual feed", colorize) {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out, renderStatusLine("URL", statusInfo, cfg.ManualFeedURL(), colorize))
			if _, err := os.Stat(cfg.Paths.ManualFeedFile); err == nil {
				fmt.Fprintln(out, renderStatusLine("File", statusOK, cfg.Paths.ManualFeedFile, colorize))
			} else {
				fmt.Fprintln(out, renderStatusLine("File", statusWarn, "not generated yet", colorize))
			}

			channels, err := st.ListChannels(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(out)
			for _, line := range renderSectionHeader("Merged feeds", colorize) {
				fmt.Fprintln(out, line)
			}
			if len(channels) == 0 {
				fmt.Fprintln(out, renderStatusLine("Channels", statusInfo, "none", colorize))
				return nil
			}
			for _, ch := range channels {
				label := truncate(ch.DisplayName(), statusLabelWidth-2)
				fmt.Fprintln(out, renderStatusLine(label, statusInfo, cfg.MergedFeedURL(ch.ID), colorize))
			}
			return nil
		},
	}
}
