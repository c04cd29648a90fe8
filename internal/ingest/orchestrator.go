// Package ingest supervises source-account ingestion sessions against the
// scraper bridge and feeds the durable ingestion queue.
package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/relayline/relayline/internal/config"
	"github.com/relayline/relayline/internal/domain"
	"github.com/relayline/relayline/internal/logging"
	"github.com/relayline/relayline/internal/store"
)

// Orchestrator runs one supervised task per account. One account's session
// failure never touches another account; the failed session is respawned
// after a cool-down. Add and Remove are serialized so start and stop of
// the same account id cannot race.
type Orchestrator struct {
	cfg      config.IngestConfig
	queue    *store.QueueStore
	accounts *store.AccountStore
	log      *logging.Logger

	mu    sync.Mutex
	tasks map[string]*supervised
}

type supervised struct {
	account config.AccountConfig
	session *Session
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(cfg config.IngestConfig, queue *store.QueueStore, accounts *store.AccountStore, log *logging.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		queue:    queue,
		accounts: accounts,
		log:      log.Sub("orchestrator"),
		tasks:    make(map[string]*supervised),
	}
}

// Add registers an account and starts its supervised session. Adding an
// account that is already running is a no-op.
func (o *Orchestrator) Add(ctx context.Context, account config.AccountConfig) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, running := o.tasks[account.ID]; running {
		return nil
	}

	if err := o.accounts.Upsert(domain.SourceAccount{
		ID: account.ID, Name: account.Name, Credential: account.Credential,
	}); err != nil {
		return err
	}

	taskCtx, cancel := context.WithCancel(ctx)
	t := &supervised{
		account: account,
		session: NewSession(account, o.cfg.BridgeURL, o.queue, o.log),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	o.tasks[account.ID] = t
	go o.supervise(taskCtx, t)

	o.log.Info().Str("account", account.ID).Msg("account added")
	return nil
}

// Remove stops an account's session and waits for clean teardown before
// releasing it. Removing an absent or already-stopped account is a no-op.
func (o *Orchestrator) Remove(id string) {
	o.mu.Lock()
	t, ok := o.tasks[id]
	if ok {
		delete(o.tasks, id)
	}
	o.mu.Unlock()
	if !ok {
		return
	}

	t.cancel()
	<-t.done
	if err := o.accounts.SetState(id, domain.AccountOffline); err != nil {
		o.log.Error().Err(err).Str("account", id).Msg("marking account offline")
	}
	o.log.Info().Str("account", id).Msg("account removed")
}

// Stop tears down all accounts. Safe to call more than once.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	ids := make([]string, 0, len(o.tasks))
	for id := range o.tasks {
		ids = append(ids, id)
	}
	o.mu.Unlock()

	for _, id := range ids {
		o.Remove(id)
	}
}

// Running returns the ids of currently supervised accounts.
func (o *Orchestrator) Running() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	ids := make([]string, 0, len(o.tasks))
	for id := range o.tasks {
		ids = append(ids, id)
	}
	return ids
}

// Health returns the latest sampled health per supervised account.
func (o *Orchestrator) Health() map[string]domain.AccountHealth {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[string]domain.AccountHealth, len(o.tasks))
	for id, t := range o.tasks {
		out[id] = t.session.Health()
	}
	return out
}

// supervise runs the session in a respawn loop with backoff cool-downs,
// sampling health into the account store on a fixed cadence.
func (o *Orchestrator) supervise(ctx context.Context, t *supervised) {
	defer close(t.done)
	id := t.account.ID

	sampleEvery := time.Duration(o.cfg.HealthSampleSeconds) * time.Second
	if sampleEvery <= 0 {
		sampleEvery = 10 * time.Second
	}
	sampler := time.NewTicker(sampleEvery)
	defer sampler.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-sampler.C:
				if err := o.accounts.SampleHealth(id, t.session.Health()); err != nil {
					o.log.Error().Err(err).Str("account", id).Msg("sampling health")
				}
			}
		}
	}()

	cooldown := backoff.NewExponentialBackOff()
	cooldown.InitialInterval = time.Second
	cooldown.MaxInterval = time.Duration(o.cfg.RestartMaxSeconds) * time.Second
	if cooldown.MaxInterval <= 0 {
		cooldown.MaxInterval = 5 * time.Minute
	}
	cooldown.MaxElapsedTime = 0 // respawn forever

	for {
		if ctx.Err() != nil {
			return
		}
		if err := o.accounts.SetState(id, domain.AccountOnline); err != nil {
			o.log.Error().Err(err).Str("account", id).Msg("marking account online")
		}

		started := time.Now()
		err := t.session.Run(ctx)
		if ctx.Err() != nil {
			return
		}

		if err := o.accounts.SetState(id, domain.AccountError); err != nil {
			o.log.Error().Err(err).Str("account", id).Msg("marking account errored")
		}
		// A session that held for a while earns a fresh backoff.
		if time.Since(started) > time.Minute {
			cooldown.Reset()
		}
		wait := cooldown.NextBackOff()
		o.log.Warn().Str("account", id).Err(err).Dur("cooldown", wait).Msg("session ended, respawning")

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}
