package cli

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/relayline/relayline/internal/config"
	"github.com/relayline/relayline/internal/destination"
	"github.com/relayline/relayline/internal/domain"
	"github.com/relayline/relayline/internal/ingest"
	"github.com/relayline/relayline/internal/logging"
	"github.com/relayline/relayline/internal/mapping"
	"github.com/relayline/relayline/internal/media"
	"github.com/relayline/relayline/internal/ratelimit"
	"github.com/relayline/relayline/internal/relay"
	"github.com/relayline/relayline/internal/retry"
	"github.com/relayline/relayline/internal/store"
)

func newRelayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Manage the relay core",
	}
	cmd.AddCommand(newRelayRunCmd())
	return cmd
}

func newRelayRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the relay: ingestion, workers, retries, media endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}
			if issues := config.Validate(&cfg); len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
			}

			level := cfg.Logging.Level
			if logLevel != "" {
				level = logLevel
			}
			log = logging.New(nil, level, cfg.Logging.Style)

			if err := paths.EnsureDirs(); err != nil {
				return err
			}

			dbPath := cfg.Storage.Path
			if dbPath == "" {
				dbPath = filepath.Join(paths.Data, "relayline.db")
			}
			db, err := store.Open(dbPath, log)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer db.Close()

			mappingStore := store.NewMappingStore(db)
			if err := syncMappings(mappingStore, cfg.Mappings); err != nil {
				return fmt.Errorf("syncing configured mappings: %w", err)
			}
			engine := mapping.NewEngine(mappingStore, log)
			if err := engine.Refresh(); err != nil {
				return err
			}

			registry := destination.NewRegistry(log)
			destination.RegisterDefaults(registry, log)

			if cfg.Media.Dir == "" {
				cfg.Media.Dir = paths.Media
			}
			if cfg.Media.BaseURL == "" {
				cfg.Media.BaseURL = "http://" + cfg.Media.ListenAddr
			}
			pipeline, err := media.NewPipeline(cfg.Media, store.NewMediaFailureStore(db), log)
			if err != nil {
				return fmt.Errorf("creating media pipeline: %w", err)
			}

			queue := store.NewQueueStore(db)
			orchestrator := ingest.NewOrchestrator(cfg.Ingest, queue, store.NewAccountStore(db), log)
			server := media.NewServer(cfg.Media.ListenAddr, pipeline, orchestrator.Health, log)

			limiter, err := ratelimit.FromConfig(cfg.RateLimit)
			if err != nil {
				return err
			}

			retryStore := store.NewRetryStore(db)
			worker := relay.NewWorker(relay.Options{
				Relay:        cfg.Relay,
				Retry:        cfg.Retry,
				Mapping:      cfg.Mapping,
				Queue:        queue,
				Dedup:        store.NewDedupStore(db),
				Engine:       engine,
				Registry:     registry,
				Pipeline:     pipeline,
				Limiter:      limiter,
				Retries:      retryStore,
				Logs:         store.NewLogStore(db),
				Destinations: destinationConfigs(cfg.Destinations),
				Filters:      cfg.Filters,
			}, log)
			scheduler := retry.NewScheduler(cfg.Retry, retryStore, worker, log)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			go func() {
				if err := server.Start(); err != nil {
					log.Error().Err(err).Msg("media endpoint failed")
					stop()
				}
			}()

			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := scheduler.Run(ctx); err != nil {
					log.Error().Err(err).Msg("retry scheduler failed")
				}
			}()

			for _, a := range cfg.Accounts {
				if err := orchestrator.Add(ctx, a); err != nil {
					log.Error().Err(err).Str("account", a.ID).Msg("starting account")
				}
			}

			log.Info().Int("accounts", len(cfg.Accounts)).
				Int("destinations", len(cfg.Destinations)).
				Msg("relay started")

			runErr := worker.Run(ctx)

			orchestrator.Stop()
			wg.Wait()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("media endpoint shutdown")
			}
			log.Info().Msg("relay stopped")
			return runErr
		},
	}
}

// syncMappings mirrors the config file's mapping entries into the store so
// the engine resolves from one place.
func syncMappings(st *store.MappingStore, entries []config.MappingEntry) error {
	for _, m := range entries {
		err := st.Upsert(domain.ChannelMapping{
			SourceChannel: m.SourceChannel,
			Platform:      domain.Platform(m.Platform),
			BotID:         m.BotID,
			DestChannel:   m.DestChannel,
			Enabled:       !m.Disabled,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func destinationConfigs(in []config.DestinationConfig) []domain.DestinationConfig {
	out := make([]domain.DestinationConfig, 0, len(in))
	for _, d := range in {
		out = append(out, domain.DestinationConfig{
			Platform:      domain.Platform(d.Platform),
			BotID:         d.BotID,
			Credential:    d.Credential,
			MaxMediaBytes: d.MaxMediaBytes,
		})
	}
	return out
}
