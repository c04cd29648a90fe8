// Package mapping resolves source channels to destinations and suggests
// new mappings from name similarity and learned history.
package mapping

import (
	"fmt"
	"sync"
	"time"

	"github.com/relayline/relayline/internal/domain"
	"github.com/relayline/relayline/internal/logging"
	"github.com/relayline/relayline/internal/store"
)

// Engine owns mapping resolution and the suggestion/learning machinery.
// Resolution is a direct index lookup; no fuzzy inference happens on the
// relay path.
type Engine struct {
	store *store.MappingStore
	log   *logging.Logger

	mu    sync.RWMutex
	index map[string][]domain.ChannelMapping // source channel -> enabled mappings
}

// NewEngine creates a mapping engine over the given store. Call Refresh
// before first use.
func NewEngine(st *store.MappingStore, log *logging.Logger) *Engine {
	return &Engine{
		store: st,
		log:   log.Sub("mapping"),
		index: make(map[string][]domain.ChannelMapping),
	}
}

// Refresh rebuilds the resolution index from the store.
func (e *Engine) Refresh() error {
	enabled, err := e.store.ListEnabled()
	if err != nil {
		return fmt.Errorf("loading mappings: %w", err)
	}
	index := make(map[string][]domain.ChannelMapping, len(enabled))
	for _, m := range enabled {
		index[m.SourceChannel] = append(index[m.SourceChannel], m)
	}

	e.mu.Lock()
	e.index = index
	e.mu.Unlock()

	e.log.Debug().Int("mappings", len(enabled)).Msg("resolution index refreshed")
	return nil
}

// Resolve returns all enabled mappings for a source channel. A nil result
// means the channel is unmapped, which is not an error.
func (e *Engine) Resolve(sourceChannel string) []domain.ChannelMapping {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.index[sourceChannel]
}

// RecordFeedback appends an accept/reject signal and folds it into the
// learned weight. Accepts add one use, rejects subtract one.
func (e *Engine) RecordFeedback(fb domain.MappingFeedback) error {
	if fb.Timestamp.IsZero() {
		fb.Timestamp = time.Now()
	}
	if err := e.store.AppendFeedback(fb); err != nil {
		return fmt.Errorf("appending feedback: %w", err)
	}
	delta := 1.0
	if !fb.Accepted {
		delta = -1.0
	}
	if err := e.store.AdjustLearned(fb.SourceChannel, fb.DestKey, delta, fb.Timestamp); err != nil {
		return fmt.Errorf("adjusting learned pair: %w", err)
	}
	e.log.Debug().
		Str("source", fb.SourceChannel).
		Str("dest", fb.DestKey).
		Bool("accepted", fb.Accepted).
		Msg("mapping feedback recorded")
	return nil
}

// RecordUse bumps the learned weight after a mapping carried a delivery.
func (e *Engine) RecordUse(sourceChannel, destKey string, at time.Time) error {
	return e.store.AdjustLearned(sourceChannel, destKey, 1, at)
}

// ApplySuggestion creates an enabled mapping from an accepted suggestion
// and records the accept feedback. This is the only way the engine creates
// mappings; it never applies suggestions on its own.
func (e *Engine) ApplySuggestion(m domain.ChannelMapping) error {
	m.Enabled = true
	if err := e.store.Upsert(m); err != nil {
		return fmt.Errorf("creating mapping: %w", err)
	}
	if err := e.RecordFeedback(domain.MappingFeedback{
		SourceChannel: m.SourceChannel,
		DestKey:       m.DestKey(),
		Accepted:      true,
		Timestamp:     time.Now(),
	}); err != nil {
		return err
	}
	return e.Refresh()
}

// PruneFeedback drops feedback and idle learned pairs older than maxAge.
func (e *Engine) PruneFeedback(maxAge time.Duration) error {
	n, err := e.store.PruneFeedback(maxAge)
	if err != nil {
		return err
	}
	if n > 0 {
		e.log.Info().Int64("pruned", n).Msg("aged mapping feedback removed")
	}
	return nil
}
