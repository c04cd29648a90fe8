// Package relay implements the orchestrating consumer: it drains the
// ingestion queue, suppresses duplicates, applies filters, resolves
// mappings and submits delivery tasks to destinations through the rate
// limiter. Failures that are worth another attempt land in the retry queue.
package relay

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/google/uuid"

	"github.com/relayline/relayline/internal/config"
	"github.com/relayline/relayline/internal/destination"
	"github.com/relayline/relayline/internal/domain"
	"github.com/relayline/relayline/internal/logging"
	"github.com/relayline/relayline/internal/mapping"
	"github.com/relayline/relayline/internal/media"
	"github.com/relayline/relayline/internal/metrics"
	"github.com/relayline/relayline/internal/ratelimit"
	"github.com/relayline/relayline/internal/store"
)

const (
	dequeueBatch     = 32
	idlePoll         = 250 * time.Millisecond
	admissionTimeout = 30 * time.Second
	deliveryTimeout  = 30 * time.Second
	housekeepEvery   = time.Hour
)

// Options wires the worker's collaborators.
type Options struct {
	Relay        config.RelayConfig
	Retry        config.RetryConfig
	Mapping      config.MappingConfig
	Queue        *store.QueueStore
	Dedup        *store.DedupStore
	Engine       *mapping.Engine
	Registry     *destination.Registry
	Pipeline     *media.Pipeline
	Limiter      ratelimit.Limiter
	Retries      *store.RetryStore
	Logs         *store.LogStore
	Destinations []domain.DestinationConfig
	Filters      domain.FilterRules
}

// Worker is the relay processing loop, sharded by source channel so one
// busy channel cannot reorder or starve another.
type Worker struct {
	opts     Options
	dests    map[string]domain.DestinationConfig // platform:botID
	debounce *Debouncer
	log      *logging.Logger
}

// NewWorker creates the relay worker.
func NewWorker(opts Options, log *logging.Logger) *Worker {
	dests := make(map[string]domain.DestinationConfig, len(opts.Destinations))
	for _, d := range opts.Destinations {
		dests[string(d.Platform)+":"+d.BotID] = d
	}
	w := &Worker{opts: opts, dests: dests, log: log.Sub("relay")}

	window := time.Duration(opts.Relay.DebounceSeconds) * time.Second
	w.debounce = NewDebouncer(window, func(ev domain.RawMessageEvent) {
		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		defer cancel()
		w.deliverAll(ctx, ev)
	})
	return w
}

// Run processes the ingestion queue until ctx is cancelled. Events claimed
// before shutdown are completed; pending debounced updates are flushed.
func (w *Worker) Run(ctx context.Context) error {
	if n, err := w.opts.Queue.RecoverInflight(); err != nil {
		return fmt.Errorf("recovering in-flight events: %w", err)
	} else if n > 0 {
		w.log.Info().Int64("events", n).Msg("reclaimed in-flight events from previous run")
	}

	shards := w.opts.Relay.Shards
	if shards <= 0 {
		shards = 1
	}
	chans := make([]chan store.QueuedEvent, shards)
	done := make(chan struct{})
	for i := range chans {
		chans[i] = make(chan store.QueuedEvent, dequeueBatch)
	}
	for i := range chans {
		go func(ch chan store.QueuedEvent) {
			for qe := range ch {
				w.processEvent(ctx, qe)
			}
			done <- struct{}{}
		}(chans[i])
	}

	w.log.Info().Int("shards", shards).Msg("relay worker started")
	housekeep := time.NewTicker(housekeepEvery)
	defer housekeep.Stop()

	for {
		select {
		case <-ctx.Done():
			for _, ch := range chans {
				close(ch)
			}
			for range chans {
				<-done
			}
			w.debounce.Flush()
			w.log.Info().Msg("relay worker stopped")
			return nil
		case <-housekeep.C:
			w.housekeep()
		default:
		}

		batch, err := w.opts.Queue.Dequeue(dequeueBatch)
		if err != nil {
			w.log.Error().Err(err).Msg("dequeue failed")
			sleepCtx(ctx, idlePoll)
			continue
		}
		if len(batch) == 0 {
			sleepCtx(ctx, idlePoll)
			continue
		}
		for _, qe := range batch {
			chans[shardFor(qe.Event.ChannelID, shards)] <- qe
		}
	}
}

// shardFor keeps all events of one source channel on the same shard,
// preserving per-channel arrival order.
func shardFor(channelID string, shards int) int {
	h := fnv.New32a()
	h.Write([]byte(channelID))
	return int(h.Sum32() % uint32(shards))
}

func (w *Worker) processEvent(ctx context.Context, qe store.QueuedEvent) {
	ev := qe.Event
	defer func() {
		if err := w.opts.Queue.Ack(qe.Seq); err != nil {
			w.log.Error().Err(err).Int64("seq", qe.Seq).Msg("ack failed")
		}
	}()

	if ev.IsUpdate() {
		if w.filtered(ev) {
			return
		}
		w.debounce.Submit(ev)
		return
	}

	window := time.Duration(w.opts.Relay.DedupWindowDays) * 24 * time.Hour
	fresh, err := w.opts.Dedup.MarkSeen(ev.ID, time.Now(), window)
	if err != nil {
		w.log.Error().Err(err).Str("msg", ev.ID).Msg("dedup check failed")
		return
	}
	if !fresh {
		metrics.DedupDrops.Inc()
		w.log.Debug().Str("msg", ev.ID).Msg("duplicate suppressed")
		return
	}

	if w.filtered(ev) {
		return
	}

	w.deliverAll(ctx, ev)
}

// filtered evaluates the filter rules against the raw event. Updates and
// new messages both pass through here; an update suppressed by a rule never
// reaches the debouncer.
func (w *Worker) filtered(ev domain.RawMessageEvent) bool {
	v := EvaluateFilters(w.opts.Filters, ev)
	if !v.Forward {
		metrics.FilterDrops.Inc()
		w.log.Debug().Str("msg", ev.ID).Str("reason", v.Reason).Msg("event filtered")
	}
	return !v.Forward
}

// deliverAll fans one event out to every enabled mapping. A failure on one
// destination never blocks the others.
func (w *Worker) deliverAll(ctx context.Context, ev domain.RawMessageEvent) {
	mappings := w.opts.Engine.Resolve(ev.ChannelID)
	if len(mappings) == 0 {
		w.log.Debug().Str("channel", ev.ChannelID).Msg("no mapping, event ignored")
		return
	}
	for _, m := range mappings {
		w.deliverOne(ctx, ev, m)
	}
}

func (w *Worker) deliverOne(ctx context.Context, ev domain.RawMessageEvent, m domain.ChannelMapping) {
	destKey := m.DestKey()
	destCfg, ok := w.dests[string(m.Platform)+":"+m.BotID]
	if !ok {
		// Integrity error: the task is dropped with a log entry and the
		// event keeps flowing to its other mappings.
		w.appendLog(domain.DeliveryLogEntry{
			TaskID: uuid.NewString(), SourceMsgID: ev.ID, SourceChannel: ev.ChannelID,
			DestKey: destKey, Status: "failed",
			Error: domain.OperatorText(domain.FailPermanentConfig) + ": bot not configured",
		})
		w.log.Warn().Str("dest", destKey).Msg("mapping references unconfigured bot")
		return
	}

	task := domain.DeliveryTask{
		ID:        uuid.NewString(),
		Event:     ev,
		Mapping:   m,
		Content:   FormatFor(m.Platform, ev),
		Media:     w.resolveMedia(ctx, ev, destCfg),
		CreatedAt: time.Now(),
	}

	err := w.Attempt(ctx, task)
	if err == nil {
		if uerr := w.opts.Engine.RecordUse(m.SourceChannel, destKey, time.Now()); uerr != nil {
			w.log.Error().Err(uerr).Msg("recording mapping use")
		}
		return
	}

	if domain.IsRetryable(err) {
		rec := domain.RetryRecord{
			ID:           task.ID,
			Task:         task,
			RetryCount:   0,
			LastError:    err.Error(),
			NextEligible: time.Now().Add(time.Duration(w.opts.Retry.BaseDelaySeconds) * time.Second),
			State:        domain.TaskRetrying,
		}
		if aerr := w.opts.Retries.Add(rec); aerr != nil {
			w.log.Error().Err(aerr).Str("task", task.ID).Msg("scheduling retry")
			return
		}
		metrics.RetriesScheduled.Inc()
		w.log.Info().Str("task", task.ID).Str("dest", destKey).Err(err).Msg("delivery scheduled for retry")
		return
	}

	kind := domain.ClassifyDelivery(err)
	w.log.Warn().Str("task", task.ID).Str("dest", destKey).
		Str("kind", string(kind)).Str("hint", domain.OperatorText(kind)).
		Err(err).Msg("permanent delivery failure")
}

// resolveMedia runs every attachment through the pipeline. An attachment
// that exhausts the pipeline is already queued as a media failure; the
// message is delivered without it.
func (w *Worker) resolveMedia(ctx context.Context, ev domain.RawMessageEvent, destCfg domain.DestinationConfig) []domain.OutboundMedia {
	if len(ev.Attachments) == 0 || w.opts.Pipeline == nil {
		return nil
	}
	var out []domain.OutboundMedia
	for _, att := range ev.Attachments {
		m, err := w.opts.Pipeline.Process(ctx, att, destCfg)
		if err != nil {
			w.log.Warn().Str("msg", ev.ID).Str("url", att.URL).Err(err).Msg("attachment dropped from delivery")
			continue
		}
		out = append(out, m)
	}
	return out
}

// Attempt performs one rate-limited delivery attempt and records it in the
// delivery log. The retry scheduler replays failed tasks through this same
// path.
func (w *Worker) Attempt(ctx context.Context, task domain.DeliveryTask) error {
	m := task.Mapping
	destKey := m.DestKey()

	adapter, ok := w.opts.Registry.Get(m.Platform)
	if !ok {
		err := domain.NewDeliveryError(domain.FailPermanentConfig,
			fmt.Errorf("no adapter for platform %q", m.Platform))
		w.recordAttempt(task, 0, err)
		return err
	}
	destCfg, ok := w.dests[string(m.Platform)+":"+m.BotID]
	if !ok {
		err := domain.NewDeliveryError(domain.FailPermanentConfig,
			errors.New("bot not configured: "+destKey))
		w.recordAttempt(task, 0, err)
		return err
	}

	if err := ratelimit.Wait(ctx, w.opts.Limiter, destKey, 1, admissionTimeout); err != nil {
		err = domain.NewDeliveryError(domain.FailTransient, fmt.Errorf("rate limit admission: %w", err))
		w.recordAttempt(task, 0, err)
		return err
	}

	dctx, cancel := context.WithTimeout(ctx, deliveryTimeout)
	defer cancel()
	start := time.Now()
	err := adapter.Deliver(dctx, destCfg, m.DestChannel, task.Content, task.Media)
	latency := time.Since(start)

	w.recordAttempt(task, latency, err)
	return err
}

func (w *Worker) recordAttempt(task domain.DeliveryTask, latency time.Duration, err error) {
	status := "success"
	errText := ""
	if err != nil {
		status = "failed"
		errText = err.Error()
	}
	metrics.DeliveryAttempts.WithLabelValues(string(task.Mapping.Platform), status).Inc()
	metrics.DeliveryLatency.WithLabelValues(string(task.Mapping.Platform)).Observe(latency.Seconds())

	w.appendLog(domain.DeliveryLogEntry{
		TaskID:        task.ID,
		SourceMsgID:   task.Event.ID,
		SourceChannel: task.Event.ChannelID,
		DestKey:       task.Mapping.DestKey(),
		Status:        status,
		LatencyMs:     latency.Milliseconds(),
		Error:         errText,
	})
}

func (w *Worker) appendLog(e domain.DeliveryLogEntry) {
	if err := w.opts.Logs.Append(e); err != nil {
		w.log.Error().Err(err).Msg("appending delivery log")
	}
}

func (w *Worker) housekeep() {
	window := time.Duration(w.opts.Relay.DedupWindowDays) * 24 * time.Hour
	if n, err := w.opts.Dedup.Prune(window); err != nil {
		w.log.Error().Err(err).Msg("pruning dedup window")
	} else if n > 0 {
		w.log.Debug().Int64("pruned", n).Msg("dedup window pruned")
	}

	if days := w.opts.Mapping.FeedbackMaxAgeDays; days > 0 {
		maxAge := time.Duration(days) * 24 * time.Hour
		if err := w.opts.Engine.PruneFeedback(maxAge); err != nil {
			w.log.Error().Err(err).Msg("pruning mapping feedback")
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
