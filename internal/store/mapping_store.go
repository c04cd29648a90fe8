package store

import (
	"time"

	"github.com/relayline/relayline/internal/domain"
)

// MappingStore persists channel mappings and the mapping engine's learning
// signals (feedback and time-decayed learned pairs).
type MappingStore struct {
	db *DB
}

// NewMappingStore creates a mapping store using the given database.
func NewMappingStore(db *DB) *MappingStore {
	return &MappingStore{db: db}
}

// Upsert creates a mapping or updates its enabled flag.
func (s *MappingStore) Upsert(m domain.ChannelMapping) error {
	_, err := s.db.sql.Exec(
		`INSERT INTO mappings (source_channel, platform, bot_id, dest_channel, enabled, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (source_channel, platform, bot_id, dest_channel)
		 DO UPDATE SET enabled = excluded.enabled`,
		m.SourceChannel, string(m.Platform), m.BotID, m.DestChannel, boolInt(m.Enabled), now(),
	)
	return err
}

// ListEnabled returns all enabled mappings.
func (s *MappingStore) ListEnabled() ([]domain.ChannelMapping, error) {
	return s.list(`SELECT id, source_channel, platform, bot_id, dest_channel, enabled, created_at
		FROM mappings WHERE enabled = 1 ORDER BY id`)
}

// ListAll returns every mapping regardless of enabled flag.
func (s *MappingStore) ListAll() ([]domain.ChannelMapping, error) {
	return s.list(`SELECT id, source_channel, platform, bot_id, dest_channel, enabled, created_at
		FROM mappings ORDER BY id`)
}

func (s *MappingStore) list(query string) ([]domain.ChannelMapping, error) {
	rows, err := s.db.sql.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ChannelMapping
	for rows.Next() {
		var m domain.ChannelMapping
		var platform, createdAt string
		var enabled int
		if err := rows.Scan(&m.ID, &m.SourceChannel, &platform, &m.BotID, &m.DestChannel, &enabled, &createdAt); err != nil {
			continue
		}
		m.Platform = domain.Platform(platform)
		m.Enabled = enabled != 0
		m.CreatedAt = parseTime(createdAt)
		out = append(out, m)
	}
	return out, rows.Err()
}

// AppendFeedback records one accept/reject signal. Feedback is append-only.
func (s *MappingStore) AppendFeedback(fb domain.MappingFeedback) error {
	ts := fb.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := s.db.sql.Exec(
		`INSERT INTO mapping_feedback (source_channel, dest_key, accepted, created_at)
		 VALUES (?, ?, ?, ?)`,
		fb.SourceChannel, fb.DestKey, boolInt(fb.Accepted), ts.UTC().Format(time.DateTime),
	)
	return err
}

// PruneFeedback deletes feedback entries older than maxAge, along with
// learned pairs whose last use is older than the same cutoff, so stale
// history drops out of suggestion confidence entirely.
func (s *MappingStore) PruneFeedback(maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge).Format(time.DateTime)
	res, err := s.db.sql.Exec(`DELETE FROM mapping_feedback WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	res, err = s.db.sql.Exec(`DELETE FROM learned_pairs WHERE last_used < ?`, cutoff)
	if err != nil {
		return n, err
	}
	stale, err := res.RowsAffected()
	return n + stale, err
}

// LearnedPair is one (source, destination) pair with its decayed use count.
type LearnedPair struct {
	SourceChannel string
	DestKey       string
	UseCount      float64
	LastUsed      time.Time
}

// AdjustLearned applies a use-count delta to a learned pair, creating it if
// absent, and refreshes its last-used time. Counts never go below zero.
func (s *MappingStore) AdjustLearned(sourceChannel, destKey string, delta float64, at time.Time) error {
	_, err := s.db.sql.Exec(
		`INSERT INTO learned_pairs (source_channel, dest_key, use_count, last_used)
		 VALUES (?, ?, MAX(0, ?), ?)
		 ON CONFLICT (source_channel, dest_key) DO UPDATE SET
			use_count = MAX(0, learned_pairs.use_count + ?),
			last_used = excluded.last_used`,
		sourceChannel, destKey, delta, at.UTC().Format(time.DateTime), delta,
	)
	return err
}

// LearnedPairs returns all learned pairs.
func (s *MappingStore) LearnedPairs() ([]LearnedPair, error) {
	rows, err := s.db.sql.Query(
		`SELECT source_channel, dest_key, use_count, last_used FROM learned_pairs`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LearnedPair
	for rows.Next() {
		var p LearnedPair
		var lastUsed string
		if err := rows.Scan(&p.SourceChannel, &p.DestKey, &p.UseCount, &lastUsed); err != nil {
			continue
		}
		p.LastUsed = parseTime(lastUsed)
		out = append(out, p)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
