package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"podcompanion/internal/config"
	"podcompanion/internal/logging"
	"podcompanion/internal/preflight"
	"podcompanion/internal/staging"
	"podcompanion/internal/statuscache"
	"podcompanion/internal/store"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List recent jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			jobs, err := st.ListRecent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, jobs)
			}
			out := cmd.OutOrStdout()
			if len(jobs) == 0 {
				fmt.Fprintln(out, "No jobs")
				return nil
			}
			rows := make([][]string, 0, len(jobs))
			for _, job := range jobs {
				updated := job.UpdatedAt
				rows = append(rows, []string{
					strconv.FormatInt(job.ID, 10),
					string(job.Kind),
					string(job.Status),
					formatTime(&updated),
					truncate(job.PayloadJSON, 40),
					truncate(dash(job.Error), 60),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Kind", "Status", "Updated", "Payload", "Error"},
				rows,
				[]columnAlignment{alignRight},
			))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of jobs")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, queue and download status",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			snapshot, err := loadSnapshot(cmd.Context(), ctx.config, st)
			if err != nil {
				return err
			}
			running, err := daemonRunning(ctx.config.LockPath())
			if err != nil {
				return err
			}
			usage, err := staging.MeasureUsage(ctx.config.Paths.StagingDir)
			if err != nil {
				return fmt.Errorf("measure staging: %w", err)
			}
			out := cmd.OutOrStdout()
			renderStatus(out, shouldColorize(out), ctx.config, running, snapshot, usage)
			return nil
		},
	}
}

// loadSnapshot reads the shared status cache. An in-memory cache belongs to
// another process, so it is rebuilt from the database instead.
func loadSnapshot(ctx context.Context, cfg *config.Config, st *store.Store) (statuscache.Snapshot, error) {
	cache := statuscache.Open(ctx, cfg, logging.NewNop())
	defer cache.Close()
	if _, ok := cache.(*statuscache.Memory); ok {
		if err := statuscache.Rebuild(ctx, st, cache); err != nil {
			return statuscache.Snapshot{}, err
		}
	}
	return cache.Snapshot(ctx)
}

func daemonRunning(lockPath string) (bool, error) {
	if _, err := os.Stat(lockPath); errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return false, fmt.Errorf("inspect daemon lock: %w", err)
	}
	if locked {
		_ = lock.Unlock()
		return false, nil
	}
	return true, nil
}

func renderStatus(out io.Writer, colorize bool, cfg *config.Config, running bool, snap statuscache.Snapshot, usage staging.Usage) {
	for _, line := range renderSectionHeader("Daemon", colorize) {
		fmt.Fprintln(out, line)
	}
	if running {
		fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, "running", colorize))
	} else {
		fmt.Fprintln(out, renderStatusLine("Daemon", statusWarn, "not running", colorize))
	}
	fmt.Fprintln(out, renderStatusLine("Database", statusInfo, cfg.DatabasePath(), colorize))
	stagingKind := statusOK
	if usage.Entries > 0 && !running {
		stagingKind = statusWarn
	}
	fmt.Fprintln(out, renderStatusLine("Staging", stagingKind,
		fmt.Sprintf("%d entries, %s", usage.Entries, humanize.IBytes(uint64(usage.Bytes))), colorize))

	fmt.Fprintln(out)
	for _, line := range renderSectionHeader("Jobs", colorize) {
		fmt.Fprintln(out, line)
	}
	for _, status := range []store.JobStatus{store.JobPending, store.JobRunning, store.JobDone, store.JobFailed} {
		fmt.Fprintln(out, renderStatusLine(string(status), jobKind(status), strconv.Itoa(snap.Jobs[status]), colorize))
	}

	fmt.Fprintln(out)
	for _, line := range renderSectionHeader("Downloads", colorize) {
		fmt.Fprintln(out, line)
	}
	counts := make(map[store.DownloadStatus]int)
	for _, state := range snap.Downloads {
		counts[state.Status]++
	}
	for _, status := range []store.DownloadStatus{store.DownloadQueued, store.DownloadRunning, store.DownloadDone, store.DownloadExternal, store.DownloadFailed} {
		fmt.Fprintln(out, renderStatusLine(string(status), downloadKind(status), strconv.Itoa(counts[status]), colorize))
	}
}

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run environment checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg)
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderSectionHeader("Preflight", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, r := range results {
				kind := statusError
				switch {
				case r.Passed:
					kind = statusOK
				case r.Optional:
					kind = statusWarn
				}
				fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
			}
			if blocking := preflight.Blocking(results); len(blocking) > 0 {
				return fmt.Errorf("%d blocking check(s) failed", len(blocking))
			}
			return nil
		},
	}
}
