// Package media downloads, transcodes and serves message attachments.
//
// The default "smart" policy tries the cheapest path first: hand the
// original URL straight to the destination when a quick probe succeeds,
// otherwise rehost a transcoded copy behind a short-lived token. A task
// that survives neither path lands in the failure queue, never on the
// floor.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"runtime"
	"time"

	"github.com/relayline/relayline/internal/config"
	"github.com/relayline/relayline/internal/domain"
	"github.com/relayline/relayline/internal/logging"
	"github.com/relayline/relayline/internal/metrics"
	"github.com/relayline/relayline/internal/store"
)

// maxDownloadBytes bounds what the pipeline will pull from a source URL.
const maxDownloadBytes = 100 << 20

// Pipeline resolves attachment URLs into deliverable media references.
type Pipeline struct {
	cfg       config.MediaConfig
	client    *http.Client
	artifacts *artifactStore
	tokens    *tokenCache
	failures  *store.MediaFailureStore
	log       *logging.Logger

	// transcodeSem bounds CPU-bound work separately from downloads so
	// image encoding cannot starve network tasks.
	transcodeSem chan struct{}
}

// NewPipeline creates a media pipeline. The failure store may not be nil;
// every exhausted task is recorded there.
func NewPipeline(cfg config.MediaConfig, failures *store.MediaFailureStore, log *logging.Logger) (*Pipeline, error) {
	artifacts, err := newArtifactStore(cfg.Dir)
	if err != nil {
		return nil, err
	}
	tokens, err := newTokenCache(cfg.TokenCacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating token cache: %w", err)
	}

	workers := cfg.TranscodeWorkers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > 8 {
		workers = 8
	}

	return &Pipeline{
		cfg:          cfg,
		client:       &http.Client{Timeout: 60 * time.Second},
		artifacts:    artifacts,
		tokens:       tokens,
		failures:     failures,
		log:          log.Sub("media"),
		transcodeSem: make(chan struct{}, workers),
	}, nil
}

// Process resolves one attachment for delivery to the hinted destination.
// Order: direct probe, then download-transcode-rehost, then failure queue.
func (p *Pipeline) Process(ctx context.Context, att domain.Attachment, hint domain.DestinationConfig) (domain.OutboundMedia, error) {
	if err := p.probeDirect(ctx, att.URL); err == nil {
		// Probe success is taken at face value; the destination is
		// assumed to render the original URL.
		return domain.OutboundMedia{URL: att.URL, Filename: att.Filename, MimeType: att.MimeType}, nil
	} else {
		p.log.Debug().Str("url", att.URL).Err(err).Msg("direct probe failed, rehosting")
	}

	out, err := p.rehost(ctx, att, hint)
	if err == nil {
		return out, nil
	}

	destKey := string(hint.Platform) + ":" + hint.BotID
	if qErr := p.failures.Add(att.URL, destKey, err.Error()); qErr != nil {
		p.log.Error().Err(qErr).Str("url", att.URL).Msg("recording media failure")
	}
	p.log.Warn().Str("url", att.URL).Str("dest", destKey).Err(err).Msg("media task queued as failure")
	return domain.OutboundMedia{}, domain.NewDeliveryError(domain.FailMediaUnavailable,
		fmt.Errorf("media pipeline exhausted for %s: %w", att.URL, err))
}

// probeDirect checks that the source URL answers within the probe budget.
func (p *Pipeline) probeDirect(ctx context.Context, sourceURL string) error {
	timeout := time.Duration(p.cfg.DirectProbeSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, sourceURL, nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("probe status %d", resp.StatusCode)
	}
	return nil
}

// rehost downloads the asset, transcodes it under the destination ceiling,
// stores it content-addressed and returns a tokened URL.
func (p *Pipeline) rehost(ctx context.Context, att domain.Attachment, hint domain.DestinationConfig) (domain.OutboundMedia, error) {
	data, err := p.download(ctx, att.URL)
	if err != nil {
		return domain.OutboundMedia{}, fmt.Errorf("download: %w", err)
	}

	ceiling := hint.MaxMediaBytes
	if ceiling <= 0 {
		ceiling = p.cfg.DefaultCeilingBytes
	}

	select {
	case p.transcodeSem <- struct{}{}:
	case <-ctx.Done():
		return domain.OutboundMedia{}, ctx.Err()
	}
	data, mimeType, err := transcode(data, p.cfg.MaxDimensionPixels, ceiling)
	<-p.transcodeSem
	if err != nil {
		return domain.OutboundMedia{}, fmt.Errorf("transcode: %w", err)
	}

	id, err := p.artifacts.Put(data)
	if err != nil {
		return domain.OutboundMedia{}, err
	}

	filename := outboundFilename(att, mimeType)
	ttl := time.Duration(p.cfg.TokenTTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	tok := p.tokens.Mint(id, filename, ttl)

	if mimeType == "" {
		mimeType = att.MimeType
	}
	metrics.MediaRehosts.Inc()
	return domain.OutboundMedia{
		URL:      p.tokenURL(id, tok.Value, filename),
		Filename: filename,
		MimeType: mimeType,
	}, nil
}

func (p *Pipeline) download(ctx context.Context, sourceURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxDownloadBytes {
		return nil, errors.New("asset exceeds download limit")
	}
	return data, nil
}

func (p *Pipeline) tokenURL(artifactID, token, filename string) string {
	q := url.Values{}
	q.Set("token", token)
	q.Set("filename", filename)
	return fmt.Sprintf("%s/media/%s?%s", p.cfg.BaseURL, artifactID, q.Encode())
}

// outboundFilename keeps the original name but fixes the extension when
// transcoding changed the format.
func outboundFilename(att domain.Attachment, mimeType string) string {
	name := att.Filename
	if name == "" {
		name = path.Base(att.URL)
		if u, err := url.Parse(att.URL); err == nil && u.Path != "" && u.Path != "/" {
			name = path.Base(u.Path)
		}
	}
	if name == "" || name == "." || name == "/" {
		name = "attachment"
	}
	if mimeType == "image/jpeg" {
		ext := path.Ext(name)
		name = name[:len(name)-len(ext)] + ".jpg"
	} else if path.Ext(name) == "" && mimeType != "" {
		if exts, _ := mime.ExtensionsByType(mimeType); len(exts) > 0 {
			name += exts[0]
		}
	}
	return name
}
