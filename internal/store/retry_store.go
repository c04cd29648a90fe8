package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/relayline/relayline/internal/domain"
)

// RetryStore persists retry records for failed delivery tasks.
type RetryStore struct {
	db *DB
}

// NewRetryStore creates a retry store using the given database.
func NewRetryStore(db *DB) *RetryStore {
	return &RetryStore{db: db}
}

// Add inserts a new retry record.
func (s *RetryStore) Add(rec domain.RetryRecord) error {
	task, err := json.Marshal(rec.Task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	_, err = s.db.sql.Exec(
		`INSERT INTO retry_records (id, task, dest_key, retry_count, last_error, next_eligible, state, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, string(task), rec.Task.Mapping.DestKey(), rec.RetryCount, rec.LastError,
		rec.NextEligible.UTC().Format(time.DateTime), string(domain.TaskRetrying), now(),
	)
	return err
}

// Due returns up to limit retrying records whose next_eligible time has
// passed, ordered oldest deadline first.
func (s *RetryStore) Due(at time.Time, limit int) ([]domain.RetryRecord, error) {
	rows, err := s.db.sql.Query(
		`SELECT id, task, retry_count, last_error, next_eligible, state
		 FROM retry_records
		 WHERE state = ? AND next_eligible <= ?
		 ORDER BY next_eligible LIMIT ?`,
		string(domain.TaskRetrying), at.UTC().Format(time.DateTime), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RetryRecord
	for rows.Next() {
		rec, err := scanRetry(rows)
		if err != nil {
			continue
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// Reschedule bumps a record's retry count and deadline after a failed attempt.
func (s *RetryStore) Reschedule(id string, retryCount int, lastError string, nextEligible time.Time) error {
	_, err := s.db.sql.Exec(
		`UPDATE retry_records SET retry_count = ?, last_error = ?, next_eligible = ? WHERE id = ?`,
		retryCount, lastError, nextEligible.UTC().Format(time.DateTime), id,
	)
	return err
}

// Delete removes a record after successful delivery.
func (s *RetryStore) Delete(id string) error {
	_, err := s.db.sql.Exec(`DELETE FROM retry_records WHERE id = ?`, id)
	return err
}

// Abandon marks a record terminally failed. Abandoned records are kept for
// operator inspection and never picked up by the scheduler again.
func (s *RetryStore) Abandon(id string, lastError string) error {
	_, err := s.db.sql.Exec(
		`UPDATE retry_records SET state = ?, last_error = ? WHERE id = ?`,
		string(domain.TaskAbandoned), lastError, id,
	)
	return err
}

// Get returns a record by id, or nil if not found.
func (s *RetryStore) Get(id string) *domain.RetryRecord {
	row := s.db.sql.QueryRow(
		`SELECT id, task, retry_count, last_error, next_eligible, state
		 FROM retry_records WHERE id = ?`, id,
	)
	rec, err := scanRetry(row)
	if err != nil {
		return nil
	}
	return rec
}

// CountByState returns the number of records in the given state.
func (s *RetryStore) CountByState(state domain.TaskState) (int, error) {
	var n int
	err := s.db.sql.QueryRow(
		`SELECT COUNT(*) FROM retry_records WHERE state = ?`, string(state),
	).Scan(&n)
	return n, err
}

func scanRetry(r rowScanner) (*domain.RetryRecord, error) {
	var rec domain.RetryRecord
	var task, nextEligible, state string
	if err := r.Scan(&rec.ID, &task, &rec.RetryCount, &rec.LastError, &nextEligible, &state); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(task), &rec.Task); err != nil {
		return nil, err
	}
	rec.NextEligible = parseTime(nextEligible)
	rec.State = domain.TaskState(state)
	return &rec, nil
}
