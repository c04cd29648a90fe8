package ingest

import (
	"github.com/relayline/relayline/internal/domain"
)

// Frame types on the scraper bridge websocket.
const (
	frameSubscribe = "subscribe"
	frameEvent     = "event"
	frameHealth    = "health"
	frameError     = "error"
)

// bridgeFrame is the envelope for everything the bridge sends. The Type
// field discriminates; exactly one payload field is set.
type bridgeFrame struct {
	Type string `json:"type"`

	Event  *domain.RawMessageEvent `json:"event,omitempty"`
	Health *healthSample           `json:"health,omitempty"`
	Error  *bridgeError            `json:"error,omitempty"`
}

// subscribeFrame opens an ingestion session for one account. The
// credential blob is opaque to the relay core.
type subscribeFrame struct {
	Type       string `json:"type"`
	AccountID  string `json:"accountId"`
	Credential string `json:"credential,omitempty"`
}

// healthSample is the bridge's view of connection quality, folded into the
// session's counters.
type healthSample struct {
	Quality float64 `json:"quality"`
}

// bridgeError is a fatal session error from the bridge side.
type bridgeError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
