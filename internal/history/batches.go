package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const batchColumns = `id, input, root, status, started_at, finished_at, succeeded, failed, summary, video, fatal`

const itemColumns = `batch_id, seq, title, source, status, output_video, message, attempts, failed_stage, finished_at`

// BeginBatch records a batch as running.
func (s *Store) BeginBatch(ctx context.Context, batch Batch) error {
	if strings.TrimSpace(batch.ID) == "" {
		return errors.New("begin batch: id is required")
	}
	started := batch.StartedAt
	if started.IsZero() {
		started = time.Now()
	}
	if err := s.exec(ctx,
		`INSERT INTO batches (id, input, root, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		batch.ID, batch.Input, batch.Root, StatusRunning, formatTime(started),
	); err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

// RecordItem stores the outcome of one video.
func (s *Store) RecordItem(ctx context.Context, item Item) error {
	finished := item.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	if err := s.exec(ctx,
		`INSERT OR REPLACE INTO batch_items (`+itemColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.BatchID, item.Seq, item.Title, nullableString(item.Source), item.Status,
		nullableString(item.OutputVideo), nullableString(item.Message), item.Attempts,
		nullableString(item.FailedStage), formatTime(finished),
	); err != nil {
		return fmt.Errorf("insert batch item: %w", err)
	}
	return nil
}

// FinishBatch writes the final tally and marks the batch completed or fatal.
func (s *Store) FinishBatch(ctx context.Context, id string, result Result) error {
	status := StatusCompleted
	if strings.TrimSpace(result.Fatal) != "" {
		status = StatusFatal
	}
	if err := s.exec(ctx,
		`UPDATE batches SET status = ?, finished_at = ?, succeeded = ?, failed = ?, summary = ?, video = ?, fatal = ? WHERE id = ?`,
		status, formatTime(time.Now()), result.Succeeded, result.Failed,
		nullableString(result.Summary), nullableString(result.Video), nullableString(result.Fatal), id,
	); err != nil {
		return fmt.Errorf("finish batch: %w", err)
	}
	return nil
}

// ListBatches returns the most recent batches first. A non-positive limit
// returns every batch.
func (s *Store) ListBatches(ctx context.Context, limit int) ([]Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM batches ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var batches []Batch
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, *batch)
	}
	return batches, rows.Err()
}

// GetBatch fetches a batch by full ID or unique prefix. It returns nil when
// nothing matches.
func (s *Store) GetBatch(ctx context.Context, idOrPrefix string) (*Batch, error) {
	idOrPrefix = strings.TrimSpace(idOrPrefix)
	if idOrPrefix == "" {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+batchColumns+` FROM batches WHERE id = ? OR id LIKE ? ORDER BY started_at DESC LIMIT 2`,
		idOrPrefix, idOrPrefix+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("get batch: %w", err)
	}
	defer rows.Close()

	var matches []*Batch
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		if batch.ID == idOrPrefix {
			return batch, nil
		}
		matches = append(matches, batch)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("batch id prefix %q is ambiguous", idOrPrefix)
	}
}

// Items returns the recorded items of a batch in submission order.
func (s *Store) Items(ctx context.Context, batchID string) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM batch_items WHERE batch_id = ? ORDER BY seq`, batchID)
	if err != nil {
		return nil, fmt.Errorf("list batch items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var (
			item        Item
			source      sql.NullString
			status      string
			output      sql.NullString
			message     sql.NullString
			failedStage sql.NullString
			finished    string
		)
		if err := rows.Scan(&item.BatchID, &item.Seq, &item.Title, &source, &status, &output,
			&message, &item.Attempts, &failedStage, &finished); err != nil {
			return nil, fmt.Errorf("scan batch item: %w", err)
		}
		item.Source = source.String
		item.Status = ItemStatus(status)
		item.OutputVideo = output.String
		item.Message = message.String
		item.FailedStage = failedStage.String
		item.FinishedAt = parseTime(finished)
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanBatch(scanner interface{ Scan(dest ...any) error }) (*Batch, error) {
	var (
		batch    Batch
		status   string
		started  string
		finished sql.NullString
		summary  sql.NullString
		video    sql.NullString
		fatal    sql.NullString
	)
	if err := scanner.Scan(&batch.ID, &batch.Input, &batch.Root, &status, &started, &finished,
		&batch.Succeeded, &batch.Failed, &summary, &video, &fatal); err != nil {
		return nil, fmt.Errorf("scan batch: %w", err)
	}
	batch.Status = Status(status)
	batch.StartedAt = parseTime(started)
	if finished.Valid {
		t := parseTime(finished.String)
		batch.FinishedAt = &t
	}
	batch.Summary = summary.String
	batch.Video = video.String
	batch.Fatal = fatal.String
	return &batch, nil
}
