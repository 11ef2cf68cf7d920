package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"medextract/logging"
	"medextract/pipeline"
)

// ErrNotFound is returned when no run matches a lookup.
var ErrNotFound = errors.New("run not found")

// Run statuses stored in the runs table.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// RunRecord is one row of the runs table. It never holds document text.
type RunRecord struct {
	ID               int64          `json:"id"`
	RequestID        string         `json:"request_id"`
	Source           string         `json:"source"`
	Status           string         `json:"status"`
	ErrorCategory    string         `json:"error_category,omitempty"`
	ErrorStage       string         `json:"error_stage,omitempty"`
	Pages            int            `json:"pages"`
	InputChars       int            `json:"input_chars"`
	Truncated        bool           `json:"truncated"`
	Redactions       int            `json:"redactions"`
	RedactionsByRule map[string]int `json:"redactions_by_rule,omitempty"`
	RecordCounts     map[string]int `json:"record_counts,omitempty"`
	DroppedItems     int            `json:"dropped_items"`
	UnknownStatuses  int            `json:"unknown_statuses"`
	DurationMS       int64          `json:"duration_ms"`
	StartedAt        time.Time      `json:"started_at"`
}

// RunFromSummary converts a pipeline summary into a row.
func RunFromSummary(s pipeline.RunSummary) RunRecord {
	status := StatusError
	if s.Success {
		status = StatusSuccess
	}
	return RunRecord{
		RequestID:        s.RequestID,
		Source:           s.Source,
		Status:           status,
		ErrorCategory:    s.ErrorCategory,
		ErrorStage:       s.ErrorStage,
		Pages:            s.Pages,
		InputChars:       s.InputChars,
		Truncated:        s.Truncated,
		Redactions:       s.Redactions,
		RedactionsByRule: s.RedactionsBy,
		RecordCounts:     s.Counts,
		DroppedItems:     s.DroppedItems,
		UnknownStatuses:  s.UnknownStatuses,
		DurationMS:       s.Duration.Milliseconds(),
		StartedAt:        s.StartedAt,
	}
}

// RunStats aggregates the runs table.
type RunStats struct {
	Total      int64            `json:"total"`
	Succeeded  int64            `json:"succeeded"`
	Failed     int64            `json:"failed"`
	ByCategory map[string]int64 `json:"by_category"`
}

// HistoryStore records pipeline runs. It implements pipeline.RunRecorder;
// inserts from RecordRun go through an AsyncWriter so a slow disk never
// holds up a request.
type HistoryStore struct {
	db     *Database
	writer *AsyncWriter[RunRecord]
	logger *logging.Logger
}

// NewHistoryStore creates a store and starts its background writer.
func NewHistoryStore(database *Database, logger *logging.Logger) *HistoryStore {
	if logger == nil {
		logger = logging.NewNop()
	}
	h := &HistoryStore{db: database, logger: logger.Named("history")}
	h.writer = NewAsyncWriter(func(rec RunRecord) error {
		_, err := h.Insert(context.Background(), rec)
		return err
	}, AsyncWriterConfig{
		ChannelCapacity: DefaultChannelCapacity,
		OnError: func(err error) {
			h.logger.Warn("Failed to store run", zap.Error(err))
		},
	})
	h.writer.Start()
	return h
}

// RecordRun queues s for insertion and returns immediately.
func (h *HistoryStore) RecordRun(s pipeline.RunSummary) {
	if !h.writer.Write(RunFromSummary(s)) {
		h.logger.Warn("Run history queue full, dropping run",
			zap.String("request_id", s.RequestID),
			zap.Int64("dropped_total", h.writer.Dropped()))
	}
}

// Insert stores rec synchronously and returns its row id.
func (h *HistoryStore) Insert(ctx context.Context, rec RunRecord) (int64, error) {
	byRule, err := encodeCounts(rec.RedactionsByRule)
	if err != nil {
		return 0, err
	}
	counts, err := encodeCounts(rec.RecordCounts)
	if err != nil {
		return 0, err
	}

	res, err := h.db.ExecContext(ctx, `
		INSERT INTO runs (
			request_id, source, status, error_category, error_stage,
			pages, input_chars, truncated, redactions, redactions_by_rule,
			record_counts, dropped_items, unknown_statuses, duration_ms, started_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RequestID, rec.Source, rec.Status, nullString(rec.ErrorCategory), nullString(rec.ErrorStage),
		rec.Pages, rec.InputChars, rec.Truncated, rec.Redactions, byRule,
		counts, rec.DroppedItems, rec.UnknownStatuses, rec.DurationMS, rec.StartedAt.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert id: %w", err)
	}
	return id, nil
}

const selectRuns = `
	SELECT id, request_id, source, status, COALESCE(error_category, ''), COALESCE(error_stage, ''),
		   pages, input_chars, truncated, redactions, COALESCE(redactions_by_rule, ''),
		   COALESCE(record_counts, ''), dropped_items, unknown_statuses, duration_ms, started_at
	FROM runs`

// Recent returns up to limit runs, newest first. limit <= 0 means 10.
func (h *HistoryStore) Recent(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := h.db.QueryContext(ctx, selectRuns+` ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunRecord{}
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

// ByRequestID returns the run with the given request id or ErrNotFound.
func (h *HistoryStore) ByRequestID(ctx context.Context, requestID string) (*RunRecord, error) {
	rows, err := h.db.QueryContext(ctx, selectRuns+` WHERE request_id = ?`, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to query run: %w", err)
		}
		return nil, ErrNotFound
	}
	rec, err := scanRun(rows)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Stats counts runs by outcome and failure category.
func (h *HistoryStore) Stats(ctx context.Context) (RunStats, error) {
	stats := RunStats{ByCategory: map[string]int64{}}

	rows, err := h.db.QueryContext(ctx,
		`SELECT status, COALESCE(error_category, ''), COUNT(*) FROM runs GROUP BY status, error_category`)
	if err != nil {
		return stats, fmt.Errorf("failed to query run stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status, category string
		var n int64
		if err := rows.Scan(&status, &category, &n); err != nil {
			return stats, fmt.Errorf("failed to scan run stats: %w", err)
		}
		stats.Total += n
		if status == StatusSuccess {
			stats.Succeeded += n
			continue
		}
		stats.Failed += n
		if category != "" {
			stats.ByCategory[category] += n
		}
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("error iterating run stats: %w", err)
	}
	return stats, nil
}

// Close drains queued inserts, waiting at most DefaultDrainTimeout.
func (h *HistoryStore) Close() {
	if !h.writer.StopWithTimeout(DefaultDrainTimeout) {
		h.logger.Warn("Timed out draining run history queue", zap.Int("pending", h.writer.Pending()))
	}
}

func scanRun(rows *sql.Rows) (RunRecord, error) {
	var (
		rec            RunRecord
		byRule, counts string
		startedAt      int64
	)
	err := rows.Scan(
		&rec.ID, &rec.RequestID, &rec.Source, &rec.Status, &rec.ErrorCategory, &rec.ErrorStage,
		&rec.Pages, &rec.InputChars, &rec.Truncated, &rec.Redactions, &byRule,
		&counts, &rec.DroppedItems, &rec.UnknownStatuses, &rec.DurationMS, &startedAt,
	)
	if err != nil {
		return rec, fmt.Errorf("failed to scan run row: %w", err)
	}
	rec.StartedAt = time.UnixMilli(startedAt)
	if rec.RedactionsByRule, err = decodeCounts(byRule); err != nil {
		return rec, err
	}
	if rec.RecordCounts, err = decodeCounts(counts); err != nil {
		return rec, err
	}
	return rec, nil
}

func encodeCounts(m map[string]int) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode counts: %w", err)
	}
	return string(b), nil
}

func decodeCounts(s string) (map[string]int, error) {
	if s == "" {
		return nil, nil
	}
	var m map[string]int
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, fmt.Errorf("failed to decode counts: %w", err)
	}
	return m, nil
}

// nullString stores an empty string as NULL.
func nullString(s string) any {
	if s == "" {
		return sql.NullString{}
	}
	return s
}
