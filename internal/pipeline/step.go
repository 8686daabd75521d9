package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"baton/internal/logging"
	"baton/internal/notifications"
	"baton/internal/services"
	"baton/internal/stage"
)

type stageFunc func(ctx context.Context, logger *slog.Logger) error

// step runs one stage with start/complete/failure logging. A failure also
// publishes a stage.failed event.
func (r *Runner) step(ctx context.Context, id stage.ID, fn stageFunc) error {
	stageCtx := services.WithStage(ctx, id.String())
	logger := logging.WithContext(stageCtx, r.logger)

	logger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))
	started := r.now()

	if err := fn(stageCtx, logger); err != nil {
		return r.handleFailure(stageCtx, logger, id, err)
	}

	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("stage_duration", r.now().Sub(started)),
	)
	return nil
}

func (r *Runner) handleFailure(ctx context.Context, logger *slog.Logger, id stage.ID, err error) error {
	hint := "inspect the stage logs and the handoff directory"
	var perr services.PipelineError
	if errors.As(err, &perr) {
		if hints := perr.Hints(); len(hints) > 0 {
			hint = hints[0]
		}
	}
	logging.ErrorWithContext(logger, "stage failed", "stage_failure",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, hint),
	)

	payload := notifications.Payload{
		"stage": id.String(),
		"error": err.Error(),
	}
	if requestID, ok := services.RequestIDFromContext(ctx); ok {
		payload["request_id"] = requestID
	}
	if pubErr := r.notifier.Publish(ctx, notifications.EventStageFailed, payload); pubErr != nil {
		logging.WarnWithContext(logger, "stage failure notification failed", "notification_failed",
			logging.Error(pubErr),
			logging.String(logging.FieldErrorHint, "check notification bus state"),
		)
	}
	return err
}
