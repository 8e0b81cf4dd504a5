package worker

import (
	"context"
	"log/slog"
	"strconv"

	"podcompanion/internal/logging"
	"podcompanion/internal/notifications"
	"podcompanion/internal/services"
	"podcompanion/internal/store"
)

// notifyOutcome announces finished download jobs and failed index jobs.
// Delivery failures are logged and never affect the job.
func (w *Worker) notifyOutcome(ctx context.Context, logger *slog.Logger, job *store.Job, runErr error) {
	event, payload, ok := w.outcomeEvent(ctx, job, runErr)
	if !ok {
		return
	}
	if err := w.notify.Publish(ctx, event, payload); err != nil {
		logging.WarnWithContext(logger, "notification delivery failed", "notification_failed",
			logging.Error(err),
			logging.String("notification_event", string(event)),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
		)
	}
}

func (w *Worker) outcomeEvent(ctx context.Context, job *store.Job, runErr error) (notifications.Event, notifications.Payload, bool) {
	switch job.Kind {
	case store.KindDownloadVideo:
		var p store.DownloadVideoPayload
		if err := job.DecodePayload(&p); err != nil || p.VideoID == "" {
			return "", nil, false
		}
		payload := notifications.Payload{"videoID": p.VideoID}
		if runErr != nil {
			payload["error"] = services.Redact(runErr)
			return notifications.EventDownloadFailed, payload, true
		}
		if video, err := w.store.VideoByVideoID(ctx, p.VideoID); err == nil && video != nil {
			payload["title"] = video.Title
		}
		if rec, err := w.store.DownloadByVideoID(ctx, p.VideoID); err == nil && rec != nil {
			payload["filename"] = rec.Filename
		}
		return notifications.EventDownloadCompleted, payload, true
	case store.KindIndexChannel:
		if runErr == nil {
			return "", nil, false
		}
		var p store.IndexChannelPayload
		if err := job.DecodePayload(&p); err != nil {
			return "", nil, false
		}
		payload := notifications.Payload{
			"channel": strconv.FormatInt(p.ChannelID, 10),
			"error":   services.Redact(runErr),
		}
		if ch, err := w.store.ChannelByID(ctx, p.ChannelID); err == nil && ch != nil {
			payload["channel"] = ch.DisplayName()
		}
		return notifications.EventIndexFailed, payload, true
	default:
		return "", nil, false
	}
}
