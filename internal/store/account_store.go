package store

import (
	"time"

	"github.com/relayline/relayline/internal/domain"
)

// AccountStore persists source accounts and their orchestrator-sampled
// health counters.
type AccountStore struct {
	db *DB
}

// NewAccountStore creates an account store using the given database.
func NewAccountStore(db *DB) *AccountStore {
	return &AccountStore{db: db}
}

// Upsert registers an account or refreshes its identity fields. Lifecycle
// state and health counters are left untouched for existing rows.
func (s *AccountStore) Upsert(acct domain.SourceAccount) error {
	_, err := s.db.sql.Exec(
		`INSERT INTO accounts (id, name, credential, state, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			credential = excluded.credential,
			updated_at = excluded.updated_at`,
		acct.ID, acct.Name, acct.Credential, string(domain.AccountPending),
		now(), now(),
	)
	return err
}

// SetState updates an account's lifecycle state.
func (s *AccountStore) SetState(id string, state domain.AccountState) error {
	_, err := s.db.sql.Exec(
		`UPDATE accounts SET state = ?, updated_at = ? WHERE id = ?`,
		string(state), now(), id,
	)
	return err
}

// SampleHealth writes the orchestrator's health sample for an account.
func (s *AccountStore) SampleHealth(id string, h domain.AccountHealth) error {
	_, err := s.db.sql.Exec(
		`UPDATE accounts SET msg_count = ?, err_count = ?, quality = ?, sampled_at = ?, updated_at = ? WHERE id = ?`,
		h.MessageCount, h.ErrorCount, h.Quality, h.SampledAt.UTC().Format(time.DateTime), now(), id,
	)
	return err
}

// Get returns an account by id, or nil if not found.
func (s *AccountStore) Get(id string) *domain.SourceAccount {
	row := s.db.sql.QueryRow(
		`SELECT id, name, credential, state, msg_count, err_count, quality, sampled_at, created_at, updated_at
		 FROM accounts WHERE id = ?`, id,
	)
	acct, err := scanAccount(row)
	if err != nil {
		return nil
	}
	return acct
}

// List returns all accounts ordered by id.
func (s *AccountStore) List() ([]domain.SourceAccount, error) {
	rows, err := s.db.sql.Query(
		`SELECT id, name, credential, state, msg_count, err_count, quality, sampled_at, created_at, updated_at
		 FROM accounts ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accts []domain.SourceAccount
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			continue
		}
		accts = append(accts, *acct)
	}
	return accts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(r rowScanner) (*domain.SourceAccount, error) {
	var acct domain.SourceAccount
	var state, sampledAt, createdAt, updatedAt string
	err := r.Scan(
		&acct.ID, &acct.Name, &acct.Credential, &state,
		&acct.Health.MessageCount, &acct.Health.ErrorCount, &acct.Health.Quality,
		&sampledAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	acct.State = domain.AccountState(state)
	acct.Health.SampledAt = parseTime(sampledAt)
	acct.CreatedAt = parseTime(createdAt)
	acct.UpdatedAt = parseTime(updatedAt)
	return &acct, nil
}

// now formats the current UTC time the way all store timestamps are kept.
func now() string {
	return time.Now().UTC().Format(time.DateTime)
}

func parseTime(s string) time.Time {
	t, _ := time.ParseInLocation(time.DateTime, s, time.UTC)
	return t
}
