package logging

import (
	"context"
	"log/slog"

	"dubflow/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldBatchID identifies the batch a log line belongs to.
	FieldBatchID = "batch_id"
	// FieldItem is the work item label (video title or path).
	FieldItem = "item"
	// FieldStage is the pipeline stage name.
	FieldStage = "stage"
	// FieldAttempt is the 1-based attempt number for an item.
	FieldAttempt = "attempt"
	// FieldCorrelationID is the per-attempt correlation identifier.
	FieldCorrelationID = "correlation_id"
	// FieldBackend is the backend kind being prepared.
	FieldBackend = "backend"
	// FieldEventType tags a log line with a machine-readable event name.
	FieldEventType = "event_type"
	// FieldErrorKind is the classification from services.Details.
	FieldErrorKind = "error_kind"
	// FieldErrorOperation is the failing operation from services.Details.
	FieldErrorOperation = "error_operation"
	// FieldErrorHint is a suggested next step for the operator.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 5)
	if id, ok := services.BatchIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldBatchID, id))
	}
	if item, ok := services.ItemFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldItem, item))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if attempt, ok := services.AttemptFromContext(ctx); ok {
		fields = append(fields, slog.Int(FieldAttempt, attempt))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	args := make([]any, len(fields))
	for i, f := range fields {
		args[i] = f
	}
	return logger.With(args...)
}
