package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/relayline/relayline/internal/domain"
)

// Queue statuses for ingest_queue rows.
const (
	queuePending  = 0
	queueInflight = 1
)

// QueuedEvent is one ingestion queue entry handed to the relay worker.
type QueuedEvent struct {
	Seq   int64
	Event domain.RawMessageEvent
}

// QueueStore is the durable, at-least-once buffer between ingestion
// sessions and the relay worker (outbox pattern over SQLite).
type QueueStore struct {
	db *DB
}

// NewQueueStore creates a queue store using the given database.
func NewQueueStore(db *DB) *QueueStore {
	return &QueueStore{db: db}
}

// Enqueue appends an event to the queue. At most one entry per
// source-message id may exist at a time; a duplicate id is dropped and
// reported via the returned bool.
func (s *QueueStore) Enqueue(ev domain.RawMessageEvent) (bool, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return false, fmt.Errorf("marshal event: %w", err)
	}
	res, err := s.db.sql.Exec(
		`INSERT OR IGNORE INTO ingest_queue (msg_id, channel_id, payload, enqueued_at)
		 VALUES (?, ?, ?, ?)`,
		ev.ID, ev.ChannelID, string(payload), now(),
	)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Dequeue claims up to limit pending events in arrival order, marking them
// in-flight. Claimed events must be acked or released.
func (s *QueueStore) Dequeue(limit int) ([]QueuedEvent, error) {
	tx, err := s.db.sql.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.Query(
		`SELECT id, payload FROM ingest_queue WHERE status = ? ORDER BY id LIMIT ?`,
		queuePending, limit,
	)
	if err != nil {
		return nil, err
	}

	var claimed []QueuedEvent
	for rows.Next() {
		var qe QueuedEvent
		var payload string
		if err := rows.Scan(&qe.Seq, &payload); err != nil {
			rows.Close()
			return nil, err
		}
		if err := json.Unmarshal([]byte(payload), &qe.Event); err != nil {
			s.db.log.Error().Err(err).Int64("seq", qe.Seq).Msg("dropping undecodable queue entry")
			continue
		}
		claimed = append(claimed, qe)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, qe := range claimed {
		if _, err := tx.Exec(`UPDATE ingest_queue SET status = ? WHERE id = ?`, queueInflight, qe.Seq); err != nil {
			return nil, err
		}
	}
	return claimed, tx.Commit()
}

// Ack removes a processed event from the queue.
func (s *QueueStore) Ack(seq int64) error {
	_, err := s.db.sql.Exec(`DELETE FROM ingest_queue WHERE id = ?`, seq)
	return err
}

// Release returns an in-flight event to pending, used when a worker shuts
// down mid-batch. Redelivery is expected; the dedup window absorbs it.
func (s *QueueStore) Release(seq int64) error {
	_, err := s.db.sql.Exec(`UPDATE ingest_queue SET status = ? WHERE id = ?`, queuePending, seq)
	return err
}

// RecoverInflight returns all in-flight entries to pending. Called once at
// startup to reclaim events orphaned by a crash.
func (s *QueueStore) RecoverInflight() (int64, error) {
	res, err := s.db.sql.Exec(`UPDATE ingest_queue SET status = ? WHERE status = ?`, queuePending, queueInflight)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Depth returns the number of pending entries.
func (s *QueueStore) Depth() (int, error) {
	var n int
	err := s.db.sql.QueryRow(`SELECT COUNT(*) FROM ingest_queue WHERE status = ?`, queuePending).Scan(&n)
	return n, err
}

// DedupStore is the rolling seen-message index backing the relay worker's
// duplicate suppression.
type DedupStore struct {
	db *DB
}

// NewDedupStore creates a dedup store using the given database.
func NewDedupStore(db *DB) *DedupStore {
	return &DedupStore{db: db}
}

// MarkSeen records a source-message id and reports whether it was new
// within the window. An id last seen outside the window is treated as new
// again and its timestamp refreshed.
func (s *DedupStore) MarkSeen(msgID string, at time.Time, window time.Duration) (bool, error) {
	ts := at.UTC().Format(time.DateTime)
	res, err := s.db.sql.Exec(
		`INSERT INTO seen_messages (msg_id, first_seen) VALUES (?, ?)
		 ON CONFLICT (msg_id) DO UPDATE SET first_seen = excluded.first_seen
		 WHERE seen_messages.first_seen < ?`,
		msgID, ts, at.UTC().Add(-window).Format(time.DateTime),
	)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Prune deletes entries older than the window.
func (s *DedupStore) Prune(window time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-window).Format(time.DateTime)
	res, err := s.db.sql.Exec(`DELETE FROM seen_messages WHERE first_seen < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
