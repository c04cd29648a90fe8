package store

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/relayline/relayline/internal/domain"
)

// LogStore records one entry per delivery attempt for later querying and
// export by the administrative layer.
type LogStore struct {
	db *DB
}

// NewLogStore creates a delivery log store using the given database.
func NewLogStore(db *DB) *LogStore {
	return &LogStore{db: db}
}

// Append writes one delivery attempt record.
func (s *LogStore) Append(e domain.DeliveryLogEntry) error {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := s.db.sql.Exec(
		`INSERT INTO delivery_log (task_id, source_msg_id, source_channel, dest_key, status, latency_ms, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.TaskID, e.SourceMsgID, e.SourceChannel, e.DestKey, e.Status, e.LatencyMs, e.Error,
		ts.UTC().Format(time.DateTime),
	)
	return err
}

// Query returns log entries newer than since, most recent first, capped at limit.
func (s *LogStore) Query(since time.Time, limit int) ([]domain.DeliveryLogEntry, error) {
	rows, err := s.db.sql.Query(
		`SELECT id, task_id, source_msg_id, source_channel, dest_key, status, latency_ms, error, created_at
		 FROM delivery_log WHERE created_at >= ? ORDER BY id DESC LIMIT ?`,
		since.UTC().Format(time.DateTime), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.DeliveryLogEntry
	for rows.Next() {
		var e domain.DeliveryLogEntry
		var createdAt string
		if err := rows.Scan(&e.ID, &e.TaskID, &e.SourceMsgID, &e.SourceChannel, &e.DestKey,
			&e.Status, &e.LatencyMs, &e.Error, &createdAt); err != nil {
			continue
		}
		e.Timestamp = parseTime(createdAt)
		out = append(out, e)
	}
	return out, rows.Err()
}

// ExportCSV writes log entries newer than since to w as CSV.
func (s *LogStore) ExportCSV(w io.Writer, since time.Time, limit int) error {
	entries, err := s.Query(since, limit)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"timestamp", "task_id", "source_msg_id", "source_channel", "dest_key", "status", "latency_ms", "error"}); err != nil {
		return err
	}
	for _, e := range entries {
		rec := []string{
			e.Timestamp.Format(time.RFC3339),
			e.TaskID, e.SourceMsgID, e.SourceChannel, e.DestKey, e.Status,
			strconv.FormatInt(e.LatencyMs, 10), e.Error,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportJSON writes log entries newer than since to w as a JSON array.
func (s *LogStore) ExportJSON(w io.Writer, since time.Time, limit int) error {
	entries, err := s.Query(since, limit)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}

// MediaFailure is a media pipeline task that exhausted all fallbacks.
type MediaFailure struct {
	ID        int64
	SourceURL string
	DestKey   string
	Reason    string
	CreatedAt time.Time
}

// MediaFailureStore persists media tasks that could not be processed, for
// later manual or automated retry. Nothing is silently dropped.
type MediaFailureStore struct {
	db *DB
}

// NewMediaFailureStore creates a media failure store using the given database.
func NewMediaFailureStore(db *DB) *MediaFailureStore {
	return &MediaFailureStore{db: db}
}

// Add records a failed media task.
func (s *MediaFailureStore) Add(sourceURL, destKey, reason string) error {
	_, err := s.db.sql.Exec(
		`INSERT INTO media_failures (source_url, dest_key, reason, created_at) VALUES (?, ?, ?, ?)`,
		sourceURL, destKey, reason, now(),
	)
	return err
}

// List returns all recorded failures, oldest first.
func (s *MediaFailureStore) List() ([]MediaFailure, error) {
	rows, err := s.db.sql.Query(
		`SELECT id, source_url, dest_key, reason, created_at FROM media_failures ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MediaFailure
	for rows.Next() {
		var f MediaFailure
		var createdAt string
		if err := rows.Scan(&f.ID, &f.SourceURL, &f.DestKey, &f.Reason, &createdAt); err != nil {
			continue
		}
		f.CreatedAt = parseTime(createdAt)
		out = append(out, f)
	}
	return out, rows.Err()
}

// Delete removes a failure entry after it has been handled.
func (s *MediaFailureStore) Delete(id int64) error {
	res, err := s.db.sql.Exec(`DELETE FROM media_failures WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("media failure %d not found", id)
	}
	return nil
}
