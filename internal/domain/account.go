package domain

import "time"

// AccountState is the lifecycle state of a source account.
type AccountState string

const (
	AccountPending AccountState = "pending"
	AccountOnline  AccountState = "online"
	AccountOffline AccountState = "offline"
	AccountError   AccountState = "error"
)

// AccountHealth holds the health counters sampled by the orchestrator.
// Counters are owned exclusively by the account's supervising task.
type AccountHealth struct {
	MessageCount int64     `json:"messageCount"`
	ErrorCount   int64     `json:"errorCount"`
	Quality      float64   `json:"quality"` // connection quality in [0,1]
	SampledAt    time.Time `json:"sampledAt"`
}

// SourceAccount is an identity in the source community whose sessions are
// supervised by the orchestrator. The credential blob is opaque to the core.
type SourceAccount struct {
	ID         string        `json:"id"`
	Name       string        `json:"name,omitempty"`
	Credential string        `json:"credential,omitempty"`
	State      AccountState  `json:"state"`
	Health     AccountHealth `json:"health"`
	CreatedAt  time.Time     `json:"createdAt"`
	UpdatedAt  time.Time     `json:"updatedAt"`
}
