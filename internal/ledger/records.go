package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status is the outcome of a handoff attempt.
type Status string

const (
	StatusPersisted Status = "persisted"
	StatusFailed    Status = "failed"
)

// Entry is one indexed handoff attempt.
type Entry struct {
	ID            string
	PipelineID    string
	RequestID     string
	CorrelationID string
	Source        string
	Target        string
	Status        Status
	CreatedAt     time.Time
	Path          string
	SizeBytes     int64
	Checksum      string
	Duration      time.Duration
	ErrorMessage  string
}

// PairLabel renders the stage pair as "source->target".
func (e Entry) PairLabel() string {
	return e.Source + "->" + e.Target
}

// timeLayout is fixed width so created_at sorts and compares as text in
// time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

const entryColumns = "id, pipeline_id, request_id, correlation_id, source, target, status, created_at, path, size_bytes, checksum, duration_ms, error_message"

// Record inserts an entry. Handoff ids are unique; recording the same id twice fails.
func (s *Store) Record(ctx context.Context, entry Entry) error {
	if strings.TrimSpace(entry.ID) == "" {
		return errors.New("record handoff: id is empty")
	}
	if strings.TrimSpace(entry.PipelineID) == "" {
		return errors.New("record handoff: pipeline id is empty")
	}
	if entry.Status == "" {
		entry.Status = StatusPersisted
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO handoffs (`+entryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.PipelineID,
		nullableString(entry.RequestID),
		nullableString(entry.CorrelationID),
		entry.Source,
		entry.Target,
		entry.Status,
		formatTime(entry.CreatedAt),
		nullableString(entry.Path),
		entry.SizeBytes,
		nullableString(entry.Checksum),
		entry.Duration.Milliseconds(),
		nullableString(entry.ErrorMessage),
	)
	if err != nil {
		return fmt.Errorf("record handoff %s: %w", entry.ID, err)
	}
	return nil
}

// Get fetches an entry by handoff id. A missing id returns nil without error.
func (s *Store) Get(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+entryColumns+` FROM handoffs WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get handoff: %w", err)
	}
	return entry, nil
}

// ListByPipeline returns a pipeline's entries ordered by creation time.
func (s *Store) ListByPipeline(ctx context.Context, pipelineID string) ([]*Entry, error) {
	return s.query(ctx, `SELECT `+entryColumns+` FROM handoffs WHERE pipeline_id = ? ORDER BY created_at, id`, pipelineID)
}

// Recent returns the newest entries first, at most limit of them. A
// non-positive limit returns every entry.
func (s *Store) Recent(ctx context.Context, limit int) ([]*Entry, error) {
	if limit <= 0 {
		return s.query(ctx, `SELECT `+entryColumns+` FROM handoffs ORDER BY created_at DESC, id DESC`)
	}
	return s.query(ctx, `SELECT `+entryColumns+` FROM handoffs ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
}

// Stats returns entry counts grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(1) FROM handoffs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("ledger stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Prune removes entries created before cutoff and reports how many were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM handoffs WHERE created_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune handoffs: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("query handoffs: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*Entry, error) {
	var (
		entry         Entry
		requestID     sql.NullString
		correlationID sql.NullString
		status        string
		createdRaw    string
		path          sql.NullString
		checksum      sql.NullString
		durationMS    int64
		errorMessage  sql.NullString
	)
	if err := scanner.Scan(
		&entry.ID,
		&entry.PipelineID,
		&requestID,
		&correlationID,
		&entry.Source,
		&entry.Target,
		&status,
		&createdRaw,
		&path,
		&entry.SizeBytes,
		&checksum,
		&durationMS,
		&errorMessage,
	); err != nil {
		return nil, err
	}
	entry.RequestID = requestID.String
	entry.CorrelationID = correlationID.String
	entry.Status = Status(status)
	entry.Path = path.String
	entry.Checksum = checksum.String
	entry.Duration = time.Duration(durationMS) * time.Millisecond
	entry.ErrorMessage = errorMessage.String
	if created, err := time.Parse(timeLayout, createdRaw); err == nil {
		entry.CreatedAt = created
	}
	return &entry, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
