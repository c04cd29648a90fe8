package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relayline/relayline/internal/config"
	"github.com/relayline/relayline/internal/domain"
	"github.com/relayline/relayline/internal/logging"
	"github.com/relayline/relayline/internal/metrics"
	"github.com/relayline/relayline/internal/store"
)

const (
	dialTimeout   = 15 * time.Second
	readDeadline  = 90 * time.Second
	maxFrameBytes = 1 << 20
)

// Session is one live ingestion connection to the scraper bridge for one
// account. Events it emits go straight into the durable ingestion queue.
// Sessions are untrusted-input boundaries: every event is validated before
// it is accepted.
type Session struct {
	account   config.AccountConfig
	bridgeURL string
	queue     *store.QueueStore
	log       *logging.Logger

	mu       sync.Mutex
	messages int64
	errors   int64
	quality  float64
}

// NewSession creates a session. Run actually connects.
func NewSession(account config.AccountConfig, bridgeURL string, queue *store.QueueStore, log *logging.Logger) *Session {
	return &Session{
		account:   account,
		bridgeURL: bridgeURL,
		queue:     queue,
		log:       log.Sub("session").With("account", account.ID),
	}
}

// Run connects, subscribes and pumps events until the connection drops or
// ctx is cancelled. A nil return means clean shutdown via ctx.
func (s *Session) Run(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, _, err := dialer.DialContext(ctx, s.bridgeURL, nil)
	if err != nil {
		return fmt.Errorf("dialing bridge: %w", err)
	}
	defer conn.Close()
	conn.SetReadLimit(maxFrameBytes)

	sub := subscribeFrame{Type: frameSubscribe, AccountID: s.account.ID, Credential: s.account.Credential}
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("subscribing: %w", err)
	}
	s.log.Info().Msg("ingestion session established")

	// Unblock the read loop when ctx is cancelled.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	for {
		conn.SetReadDeadline(time.Now().Add(readDeadline))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("reading frame: %w", err)
		}

		var frame bridgeFrame
		if err := json.Unmarshal(msg, &frame); err != nil {
			s.countError()
			s.log.Warn().Err(err).Msg("undecodable bridge frame")
			continue
		}
		s.handleFrame(frame)
		if frame.Type == frameError {
			return fmt.Errorf("bridge error %s: %s", frame.Error.Code, frame.Error.Message)
		}
	}
}

func (s *Session) handleFrame(frame bridgeFrame) {
	switch frame.Type {
	case frameEvent:
		if frame.Event == nil {
			s.countError()
			return
		}
		s.acceptEvent(*frame.Event)
	case frameHealth:
		if frame.Health != nil {
			s.mu.Lock()
			s.quality = frame.Health.Quality
			s.mu.Unlock()
		}
	case frameError:
		s.countError()
	default:
		s.log.Debug().Str("type", frame.Type).Msg("ignoring unknown frame type")
	}
}

// acceptEvent validates untrusted bridge input and enqueues it.
func (s *Session) acceptEvent(ev domain.RawMessageEvent) {
	if err := validateEvent(ev); err != nil {
		s.countError()
		s.log.Warn().Err(err).Msg("rejecting malformed event")
		return
	}
	if ev.AccountID == "" {
		ev.AccountID = s.account.ID
	}
	fresh, err := s.queue.Enqueue(ev)
	if err != nil {
		s.countError()
		s.log.Error().Err(err).Str("msg", ev.ID).Msg("enqueue failed")
		return
	}
	if !fresh {
		s.log.Debug().Str("msg", ev.ID).Msg("event already queued")
		return
	}
	s.mu.Lock()
	s.messages++
	s.mu.Unlock()
	metrics.EventsIngested.WithLabelValues(s.account.ID).Inc()
}

func (s *Session) countError() {
	s.mu.Lock()
	s.errors++
	s.mu.Unlock()
}

// Health snapshots the session counters. Called only by the supervising
// orchestrator task.
func (s *Session) Health() domain.AccountHealth {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.AccountHealth{
		MessageCount: s.messages,
		ErrorCount:   s.errors,
		Quality:      s.quality,
		SampledAt:    time.Now(),
	}
}

// validateEvent enforces the untrusted-input contract: a usable message id
// and a well-formed source-channel id.
func validateEvent(ev domain.RawMessageEvent) error {
	if ev.ID == "" {
		return fmt.Errorf("empty source-message id")
	}
	if !config.ValidSourceChannelID(ev.ChannelID) {
		return fmt.Errorf("malformed source-channel id %q", ev.ChannelID)
	}
	switch ev.Kind {
	case domain.EventMessage, domain.EventReaction, domain.EventEdit:
	default:
		return fmt.Errorf("unknown event kind %q", ev.Kind)
	}
	return nil
}
