package reconcile

import (
	"context"
	"log/slog"
	"strings"

	"podcompanion/internal/logging"
	"podcompanion/internal/services"
	"podcompanion/internal/store"
	"podcompanion/internal/videoid"
)

// Decision is the outcome for one requested identifier.
type Decision string

const (
	DecisionQueued   Decision = "queued"
	DecisionExisting Decision = "skipped_existing"
	DecisionExternal Decision = "externally_satisfied"
	DecisionInvalid  Decision = "invalid"
)

// Outcome pairs a requested identifier with its decision.
type Outcome struct {
	VideoID  string
	Decision Decision
	JobID    int64
}

// Result summarizes a batch. ExternallySatisfied is also included in
// SkippedExisting.
type Result struct {
	Queued              int
	SkippedExisting     int
	ExternallySatisfied int
	Invalid             int
	Outcomes            []Outcome
}

// Reconciler turns download requests into download records and jobs.
type Reconciler struct {
	store  *store.Store
	probe  Probe
	logger *slog.Logger
}

// New constructs a reconciler. A nil probe disables external detection.
func New(st *store.Store, probe Probe, logger *slog.Logger) *Reconciler {
	if probe == nil {
		probe = NoProbe{}
	}
	return &Reconciler{
		store:  st,
		probe:  probe,
		logger: logging.NewComponentLogger(logger, "reconcile"),
	}
}

// EnqueueDownloads processes ids in order. Duplicates within the batch are
// handled once. On a storage failure the counts reached so far are returned
// alongside the error.
func (r *Reconciler) EnqueueDownloads(ctx context.Context, ids []string) (Result, error) {
	var result Result
	seen := make(map[string]struct{}, len(ids))
	for _, raw := range ids {
		id := strings.TrimSpace(raw)
		if !videoid.Valid(id) {
			result.Invalid++
			result.Outcomes = append(result.Outcomes, Outcome{VideoID: raw, Decision: DecisionInvalid})
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		outcome, err := r.reconcileOne(ctx, id)
		if err != nil {
			return result, err
		}
		result.Outcomes = append(result.Outcomes, outcome)
		switch outcome.Decision {
		case DecisionQueued:
			result.Queued++
		case DecisionExternal:
			result.ExternallySatisfied++
			result.SkippedExisting++
		case DecisionExisting:
			result.SkippedExisting++
		}
	}
	r.logger.Info("download batch reconciled",
		logging.Int("requested", len(ids)),
		logging.Int("queued", result.Queued),
		logging.Int("skipped_existing", result.SkippedExisting),
		logging.Int("externally_satisfied", result.ExternallySatisfied),
		logging.Int("invalid", result.Invalid),
	)
	return result, nil
}

func (r *Reconciler) reconcileOne(ctx context.Context, id string) (Outcome, error) {
	outcome := Outcome{VideoID: id}
	existing, err := r.store.DownloadByVideoID(ctx, id)
	if err != nil {
		return outcome, services.Wrap(services.ErrStorage, "reconcile", "lookup download", "Failed to read download record", err)
	}
	if existing != nil && existing.Status.Settled() {
		outcome.Decision = DecisionExisting
		return outcome, nil
	}

	satisfied, err := r.probe.Satisfied(ctx, id)
	if err != nil {
		logging.WarnWithContext(r.logger, "external download probe failed", "probe_failed",
			logging.String(logging.FieldVideoID, id),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check podsync data_dir permissions"),
			logging.String(logging.FieldImpact, "video queued for download instead"),
		)
		satisfied = false
	}
	if satisfied {
		if _, err := r.store.MarkDownloadExternal(ctx, id); err != nil {
			return outcome, services.Wrap(services.ErrStorage, "reconcile", "mark external", "Failed to record external download", err)
		}
		r.logger.Debug("video satisfied by external download", logging.String(logging.FieldVideoID, id))
		outcome.Decision = DecisionExternal
		return outcome, nil
	}

	job, err := r.store.QueueDownload(ctx, id)
	if err != nil {
		return outcome, services.Wrap(services.ErrStorage, "reconcile", "queue download", "Failed to queue download", err)
	}
	if job == nil {
		outcome.Decision = DecisionExisting
		return outcome, nil
	}
	outcome.Decision = DecisionQueued
	outcome.JobID = job.ID
	return outcome, nil
}
