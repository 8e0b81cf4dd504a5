package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"podcompanion/internal/store"
)

func newVideosCommand(ctx *commandContext) *cobra.Command {
	var filter store.VideoFilter
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "videos",
		Short: "Browse the indexed catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			videos, err := st.ListVideos(cmd.Context(), filter)
			if err != nil {
				return err
			}
			ids := make([]string, 0, len(videos))
			for _, v := range videos {
				ids = append(ids, v.VideoID)
			}
			downloads, err := st.DownloadsByVideoIDs(cmd.Context(), ids)
			if err != nil {
				return err
			}

			type videoRow struct {
				VideoID     string `json:"video_id"`
				ChannelID   int64  `json:"channel_id"`
				Title       string `json:"title"`
				Published   string `json:"published"`
				Unavailable bool   `json:"unavailable"`
				Download    string `json:"download,omitempty"`
			}
			rows := make([]videoRow, 0, len(videos))
			for _, v := range videos {
				row := videoRow{
					VideoID:     v.VideoID,
					ChannelID:   v.ChannelID,
					Title:       v.Title,
					Published:   formatDate(v.PublishedAt),
					Unavailable: v.Unavailable,
				}
				if rec, ok := downloads[v.VideoID]; ok {
					row.Download = string(rec.Status)
				}
				rows = append(rows, row)
			}

			if asJSON {
				return writeJSON(cmd, rows)
			}
			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(out, "No videos match")
				return nil
			}
			table := make([][]string, 0, len(rows))
			for _, r := range rows {
				title := truncate(r.Title, 60)
				if r.Unavailable {
					title += " (unavailable)"
				}
				table = append(table, []string{
					r.VideoID,
					strconv.FormatInt(r.ChannelID, 10),
					r.Published,
					title,
					dash(r.Download),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Video", "Channel", "Published", "Title", "Download"},
				table,
				[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().Int64Var(&filter.ChannelID, "channel", 0, "Restrict to one channel id")
	cmd.Flags().StringVarP(&filter.Query, "query", "q", "", "Case-insensitive title search")
	cmd.Flags().IntVarP(&filter.Limit, "limit", "n", 50, "Maximum number of videos")
	cmd.Flags().IntVar(&filter.Offset, "offset", 0, "Skip this many videos")
	cmd.Flags().BoolVar(&filter.IncludeUnavailable, "include-unavailable", false, "Include videos marked unavailable")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "download <video-id>...",
		Short: "Request manual downloads for videos",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.intake()
			if err != nil {
				return err
			}
			result, err := svc.EnqueueDownloads(cmd.Context(), args)
			if err != nil {
				return err
			}
			counts := map[string]int{
				"queued":               result.Queued,
				"skipped_existing":     result.SkippedExisting,
				"externally_satisfied": result.ExternallySatisfied,
				"invalid":              result.Invalid,
			}
			if asJSON {
				return writeJSON(cmd, counts)
			}
			out := cmd.OutOrStdout()
			for _, outcome := range result.Outcomes {
				line := fmt.Sprintf("  %-16s %s", outcome.VideoID, outcome.Decision)
				if outcome.JobID > 0 {
					line += fmt.Sprintf(" (job %d)", outcome.JobID)
				}
				fmt.Fprintln(out, line)
			}
			fmt.Fprintf(out, "queued=%d skipped_existing=%d externally_satisfied=%d invalid=%d\n",
				result.Queued, result.SkippedExisting, result.ExternallySatisfied, result.Invalid)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output counts as JSON")
	return cmd
}

func newDownloadsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "downloads",
		Short: "List manual download records",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			records, err := st.ListDownloads(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No downloads")
				return nil
			}
			colorize := shouldColorize(out)
			for _, rec := range records {
				detail := rec.Filename
				if rec.Status == store.DownloadFailed {
					detail = rec.Error
				}
				updated := rec.UpdatedAt
				msg := strings.TrimSpace(fmt.Sprintf("%s %s", formatTime(&updated), truncate(detail, 80)))
				fmt.Fprintln(out, renderStatusLine(rec.VideoID, downloadKind(rec.Status), string(rec.Status)+" "+msg, colorize))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of records (0 for all)")
	return cmd
}
