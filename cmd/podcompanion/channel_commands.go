package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newChannelCommand(ctx *commandContext) *cobra.Command {
	channelCmd := &cobra.Command{
		Use:   "channel",
		Short: "Manage indexed channels",
	}
	channelCmd.AddCommand(newChannelAddCommand(ctx))
	channelCmd.AddCommand(newChannelListCommand(ctx))
	channelCmd.AddCommand(newChannelSyncCommand(ctx))
	return channelCmd
}

func newChannelAddCommand(ctx *commandContext) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Add a channel to the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.intake()
			if err != nil {
				return err
			}
			channel, created, err := svc.AddChannel(cmd.Context(), args[0], name)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if created {
				fmt.Fprintf(out, "Added channel %d: %s\n", channel.ID, channel.DisplayName())
			} else {
				fmt.Fprintf(out, "Channel already exists as %d: %s\n", channel.ID, channel.DisplayName())
			}
			fmt.Fprintf(out, "Merged feed: %s\n", ctx.config.MergedFeedURL(channel.ID))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name for the channel")
	return cmd
}

func newChannelListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List indexed channels",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			channels, err := st.ListChannels(cmd.Context())
			if err != nil {
				return err
			}
			states, err := st.LatestIndexStates(cmd.Context())
			if err != nil {
				return err
			}

			type channelRow struct {
				ID          int64  `json:"id"`
				URL         string `json:"url"`
				Name        string `json:"name"`
				Videos      int    `json:"videos"`
				LastIndexed string `json:"last_indexed"`
				IndexStatus string `json:"index_status"`
			}
			rows := make([]channelRow, 0, len(channels))
			for _, ch := range channels {
				count, err := st.CountVideos(cmd.Context(), ch.ID)
				if err != nil {
					return err
				}
				status := "-"
				if state, ok := states[ch.ID]; ok {
					status = string(state.Status)
				}
				rows = append(rows, channelRow{
					ID:          ch.ID,
					URL:         ch.URL,
					Name:        ch.Name,
					Videos:      count,
					LastIndexed: formatTime(ch.LastIndexedAt),
					IndexStatus: status,
				})
			}

			if asJSON {
				return writeJSON(cmd, rows)
			}
			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(out, "No channels. Add one with: podcompanion channel add <url>")
				return nil
			}
			table := make([][]string, 0, len(rows))
			for _, r := range rows {
				table = append(table, []string{
					strconv.FormatInt(r.ID, 10),
					truncate(dash(r.Name), 32),
					r.URL,
					strconv.Itoa(r.Videos),
					r.LastIndexed,
					r.IndexStatus,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Name", "URL", "Videos", "Last Indexed", "Index"},
				table,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newChannelSyncCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Import channels from the Podsync config and refresh merged feeds",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.intake()
			if err != nil {
				return err
			}
			job, err := svc.SyncExternal(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queued %s job %d\n", job.Kind, job.ID)
			return nil
		},
	}
}

func newIndexCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "index <channel-id>",
		Short: "Queue a catalog scan for a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid channel id %q", args[0])
			}
			svc, err := ctx.intake()
			if err != nil {
				return err
			}
			job, err := svc.EnqueueIndex(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queued %s job %d for channel %d\n", job.Kind, job.ID, id)
			return nil
		},
	}
}
