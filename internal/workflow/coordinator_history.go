package workflow

import (
	"context"
	"errors"
	"strings"
	"time"

	"dubflow/internal/history"
	"dubflow/internal/logging"
)

func (c *Coordinator) begin(ctx context.Context, batchID, root, input string) {
	if c.recorder == nil {
		return
	}
	err := c.recorder.BeginBatch(ctx, history.Batch{
		ID:        batchID,
		Input:     input,
		Root:      root,
		Status:    history.StatusRunning,
		StartedAt: c.now(),
	})
	c.historyError(ctx, "begin batch", err)
}

func (c *Coordinator) recordItem(ctx context.Context, batchID string, seq int, outcome Outcome) {
	if c.recorder == nil {
		return
	}
	item := history.Item{
		BatchID:     batchID,
		Seq:         seq,
		Title:       outcome.Item.Label(),
		Source:      firstNonEmpty(outcome.Item.URL, outcome.Item.Path, outcome.Item.ID),
		Status:      history.ItemSucceeded,
		OutputVideo: outcome.Video,
		Attempts:    outcome.Attempts,
		FinishedAt:  c.now(),
	}
	if !outcome.Succeeded() {
		item.Status = history.ItemFailed
		item.Message = outcome.Message
		item.FailedStage = string(outcome.FailedStage)
	}
	c.historyError(ctx, "record item", c.recorder.RecordItem(context.WithoutCancel(ctx), item))
}

// finish closes the batch record and sends the completion notification.
func (c *Coordinator) finish(ctx context.Context, report Report, started time.Time) {
	detached := context.WithoutCancel(ctx)
	if c.recorder != nil {
		result := history.Result{
			Succeeded: report.Succeeded,
			Failed:    report.Failed,
			Summary:   report.Summary,
			Video:     report.Video,
		}
		if report.Fatal {
			result.Fatal = report.Summary
		}
		c.historyError(ctx, "finish batch", c.recorder.FinishBatch(detached, report.BatchID, result))
	}

	if report.Fatal {
		c.notifyFatal(detached, report)
		return
	}
	c.notifyCompleted(detached, report, c.now().Sub(started))
}

func (c *Coordinator) historyError(ctx context.Context, op string, err error) {
	if err == nil {
		return
	}
	logging.WarnWithContext(logging.WithContext(ctx, c.logger), "history update failed", "history_write_failed",
		logging.String(logging.FieldErrorOperation, op),
		logging.String(logging.FieldErrorHint, "check the state directory is writable"),
		logging.String(logging.FieldImpact, "batch will be missing from dubflow history"),
		logging.Error(err),
	)
}

func (c *Coordinator) notifyStarted(ctx context.Context, inputs []string, count int) {
	c.notifyResult(ctx, "batch start", c.notifier.NotifyBatchStarted(ctx, strings.Join(inputs, ", "), count))
}

func (c *Coordinator) notifyItemFailed(ctx context.Context, title, message string) {
	c.notifyResult(ctx, "item failure", c.notifier.NotifyItemFailed(ctx, title, message))
}

func (c *Coordinator) notifyCompleted(ctx context.Context, report Report, elapsed time.Duration) {
	c.notifyResult(ctx, "batch completion", c.notifier.NotifyBatchCompleted(ctx, report.Succeeded, report.Failed, elapsed, report.Video))
}

func (c *Coordinator) notifyFatal(ctx context.Context, report Report) {
	err := report.Err
	if err == nil {
		err = errors.New(report.Summary)
	}
	c.notifyResult(ctx, "batch error", c.notifier.NotifyError(ctx, err, report.Summary))
}

func (c *Coordinator) notifyResult(ctx context.Context, event string, err error) {
	if err == nil {
		return
	}
	logger := logging.WithContext(ctx, c.logger)
	if errors.Is(err, context.Canceled) {
		logger.Debug("shutting down, notification not sent", logging.String("notification", event))
		return
	}
	logger.Debug("notification failed", logging.String("notification", event), logging.Error(err))
}
