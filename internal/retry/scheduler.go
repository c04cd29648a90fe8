// Package retry replays failed delivery tasks with exponential backoff.
// Records live in the retry store so a restart never loses a pending task.
package retry

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/relayline/relayline/internal/config"
	"github.com/relayline/relayline/internal/domain"
	"github.com/relayline/relayline/internal/logging"
	"github.com/relayline/relayline/internal/metrics"
	"github.com/relayline/relayline/internal/store"
)

// Attempter performs one delivery attempt. The relay worker implements it;
// retries flow through the same rate-limited path as first attempts.
type Attempter interface {
	Attempt(ctx context.Context, task domain.DeliveryTask) error
}

// Delay returns the backoff before retry attempt n: base doubled per
// attempt, capped at the configured maximum. Monotonic in n.
func Delay(cfg config.RetryConfig, retryCount int) time.Duration {
	base := float64(cfg.BaseDelaySeconds)
	maxDelay := float64(cfg.MaxDelaySeconds)
	d := base * math.Pow(2, float64(retryCount))
	if d > maxDelay {
		d = maxDelay
	}
	return time.Duration(d) * time.Second
}

// Scheduler polls the retry store and dispatches due records.
type Scheduler struct {
	cfg       config.RetryConfig
	store     *store.RetryStore
	attempter Attempter
	log       *logging.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewScheduler creates a retry scheduler.
func NewScheduler(cfg config.RetryConfig, st *store.RetryStore, attempter Attempter, log *logging.Logger) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		store:     st,
		attempter: attempter,
		log:       log.Sub("retry"),
		inflight:  make(map[string]struct{}),
	}
}

// Run polls until ctx is cancelled. In-flight attempts are awaited on
// shutdown.
func (s *Scheduler) Run(ctx context.Context) error {
	poll := time.Duration(s.cfg.PollSeconds) * time.Second
	if poll <= 0 {
		poll = 5 * time.Second
	}
	s.log.Info().Dur("poll", poll).Int("maxConcurrent", s.cfg.MaxConcurrent).Msg("retry scheduler started")

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	var wg sync.WaitGroup
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			s.log.Info().Msg("retry scheduler stopped")
			return nil
		case <-ticker.C:
			s.tick(ctx, &wg)
		}
	}
}

// tick dispatches due records, bounded by MaxConcurrent including records
// still in flight from earlier ticks.
func (s *Scheduler) tick(ctx context.Context, wg *sync.WaitGroup) {
	limit := s.cfg.MaxConcurrent
	if limit <= 0 {
		limit = 10
	}

	due, err := s.store.Due(time.Now(), limit)
	if err != nil {
		s.log.Error().Err(err).Msg("loading due retries")
		return
	}

	for _, rec := range due {
		s.mu.Lock()
		if len(s.inflight) >= limit {
			s.mu.Unlock()
			break
		}
		if _, busy := s.inflight[rec.ID]; busy {
			s.mu.Unlock()
			continue
		}
		s.inflight[rec.ID] = struct{}{}
		s.mu.Unlock()

		wg.Add(1)
		go func(rec domain.RetryRecord) {
			defer wg.Done()
			s.attemptOne(ctx, rec)
			s.mu.Lock()
			delete(s.inflight, rec.ID)
			s.mu.Unlock()
		}(rec)
	}
}

func (s *Scheduler) attemptOne(ctx context.Context, rec domain.RetryRecord) {
	err := s.attempter.Attempt(ctx, rec.Task)
	if err == nil {
		if derr := s.store.Delete(rec.ID); derr != nil {
			s.log.Error().Err(derr).Str("record", rec.ID).Msg("removing delivered retry record")
		}
		s.log.Info().Str("record", rec.ID).Int("attempt", rec.RetryCount+1).Msg("retry delivered")
		return
	}

	if !domain.IsRetryable(err) {
		s.abandon(rec, err, "permanent failure on retry")
		return
	}

	next := rec.RetryCount + 1
	if next >= s.cfg.MaxRetries {
		s.abandon(rec, err, "retry budget exhausted")
		return
	}

	deadline := time.Now().Add(Delay(s.cfg, next))
	if rerr := s.store.Reschedule(rec.ID, next, err.Error(), deadline); rerr != nil {
		s.log.Error().Err(rerr).Str("record", rec.ID).Msg("rescheduling retry")
		return
	}
	s.log.Info().Str("record", rec.ID).Int("attempt", next).
		Time("nextEligible", deadline).Err(err).Msg("retry rescheduled")
}

func (s *Scheduler) abandon(rec domain.RetryRecord, err error, why string) {
	if aerr := s.store.Abandon(rec.ID, err.Error()); aerr != nil {
		s.log.Error().Err(aerr).Str("record", rec.ID).Msg("abandoning retry record")
		return
	}
	metrics.RetriesAbandoned.Inc()
	kind := domain.ClassifyDelivery(err)
	s.log.Warn().Str("record", rec.ID).Str("dest", rec.Task.Mapping.DestKey()).
		Str("kind", string(kind)).Str("hint", domain.OperatorText(kind)).
		Str("why", why).Err(err).Msg("delivery abandoned")
}
