// Package streams turns content identities into ranked, provider-backed stream lists and
// resolves a chosen stream into a playable URL.
package streams

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"streamresolver/config"
	"streamresolver/internal/magnet"
	"streamresolver/internal/mediaresolve"
	"streamresolver/internal/ranking"
	"streamresolver/internal/store"
	"streamresolver/internal/streamerr"
	"streamresolver/models"
	"streamresolver/services/debrid"
)

// CandidateSource produces deduplicated candidates for an identity.
type CandidateSource interface {
	Aggregate(ctx context.Context, identity models.ContentIdentity) ([]models.CandidateStream, error)
}

// RankedStream is one stream offered through one provider.
type RankedStream struct {
	models.StreamRecord
	ProviderID string   `json:"provider"`
	Unverified bool     `json:"unverified,omitempty"` // cached state was assumed in degraded mode
	Name       string   `json:"name"`
	Title      string   `json:"title"`
	Features   []string `json:"features,omitempty"`
	Token      string   `json:"token"` // selection token accepted by ResolveSelection
}

func (r RankedStream) RankQuality() int     { return r.Quality }
func (r RankedStream) RankSizeMB() float64 { return r.SizeMB }

// Options wires an Engine. Store, Sources and Providers are required.
type Options struct {
	Settings  config.EngineSettings
	Store     store.ContentStore
	Sources   CandidateSource
	Providers []debrid.Provider
	Prober    debrid.URLProber // used only when Settings.ProbeURLs is set
}

type Engine struct {
	settings     config.EngineSettings
	store        store.ContentStore
	merger       *MergeCoordinator
	sources      CandidateSource
	providers    []debrid.Provider
	availability *debrid.AvailabilityResolver
	cascade      *debrid.Cascade
	refreshes    singleflight.Group
	now          func() time.Time
}

func New(opts Options) *Engine {
	settings := opts.Settings
	cascadeOpts := debrid.CascadeOptions{
		PollInterval:      settings.PollInterval(),
		MaxPollAttempts:   settings.PollMaxAttempts,
		ProviderTimeout:   settings.ProviderTimeout(),
		MinVideoFileBytes: settings.MinVideoFileBytes(),
	}
	if settings.ProbeURLs {
		cascadeOpts.Prober = opts.Prober
	}
	return &Engine{
		settings:     settings,
		store:        opts.Store,
		merger:       NewMergeCoordinator(opts.Store, settings.LockTimeout()),
		sources:      opts.Sources,
		providers:    opts.Providers,
		availability: debrid.NewAvailabilityResolver(opts.Providers),
		cascade:      debrid.NewCascade(cascadeOpts),
		now:          time.Now,
	}
}

// Providers returns the configured provider tags in configuration order.
func (e *Engine) Providers() []string {
	return lo.Map(e.providers, func(p debrid.Provider, _ int) string {
		return strings.ToLower(p.Name())
	})
}

// Close releases the content store.
func (e *Engine) Close() error {
	if e.store == nil {
		return nil
	}
	return e.store.Close()
}

// GetRankedStreams returns the playable streams for identity on the given providers (all
// configured providers when providerIDs is empty). Already-known fresh streams are used as-is;
// unless there are enough of them, sources are queried and new candidates checked. Source and
// provider failures only shrink the list; the only error is an invalid identity.
func (e *Engine) GetRankedStreams(ctx context.Context, identity models.ContentIdentity, providerIDs []string) ([]RankedStream, error) {
	identity, err := models.NewContentIdentity(identity.MediaType, identity.CatalogID, identity.Season, identity.Episode)
	if err != nil {
		return nil, streamerr.New(streamerr.KindInvalidInput, "get ranked streams", err)
	}

	ids := e.selectProviders(providerIDs)
	if len(ids) == 0 {
		log.Printf("[engine] %s: no usable providers in %v", identity, providerIDs)
		return []RankedStream{}, nil
	}

	now := e.now()
	snapshot, err := e.merger.Snapshot(ctx, identity)
	if err != nil {
		log.Printf("[engine] %s: snapshot read failed: %v", identity, err)
		snapshot = nil
	}

	fresh := e.entries(snapshot, ids, now, true)
	freshStreams := len(lo.UniqBy(fresh, func(r RankedStream) string { return r.Hash }))
	if freshStreams >= e.shortCircuitThreshold() {
		log.Printf("[engine] %s: %d fresh cached streams, skipping sources", identity, freshStreams)
		return e.finish(fresh), nil
	}

	// The refresh is shared by every caller of this key, so it must not end with
	// whichever caller disconnects first.
	key := identity.Key() + "|" + strings.Join(ids, ",")
	ch := e.refreshes.DoChan(key, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.settings.RefreshTimeout())
		defer cancel()
		return e.refresh(rctx, identity, ids, snapshot)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		log.Printf("[engine] %s: caller gone before refresh finished: %v", identity, ctx.Err())
		return e.finish(fresh), nil
	}
	if res.Err != nil {
		log.Printf("[engine] %s: refresh failed, serving %d cached entries: %v", identity, len(fresh), res.Err)
		return e.finish(fresh), nil
	}
	if res.Shared {
		log.Printf("[engine] %s: joined an in-flight refresh", identity)
	}

	records := res.Val.([]models.StreamRecord)
	return e.finish(e.entries(records, ids, now, false)), nil
}

// refresh aggregates new candidates, re-checks stale cached ones and persists the result.
func (e *Engine) refresh(ctx context.Context, identity models.ContentIdentity, ids []string, snapshot []models.StreamRecord) ([]models.StreamRecord, error) {
	candidates, err := e.sources.Aggregate(ctx, identity)
	if err != nil {
		log.Printf("[engine] %s: %v", identity, err)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	now := e.now()
	ttl := e.settings.Freshness()
	freshHashes := make(map[string]struct{})
	var stale []models.CandidateStream
	for _, rec := range snapshot {
		switch {
		case lo.SomeBy(ids, func(id string) bool { return verifiedFresh(rec, id, now, ttl) }):
			freshHashes[rec.Hash] = struct{}{}
		case lo.SomeBy(ids, rec.CachedOn):
			stale = append(stale, candidateFromRecord(rec))
		}
	}

	pending := lo.UniqBy(append(stale, candidates...), func(c models.CandidateStream) string { return c.Hash })
	pending = lo.Reject(pending, func(c models.CandidateStream, _ int) bool {
		_, ok := freshHashes[c.Hash]
		return ok
	})
	if limit := e.maxCandidates(); len(pending) > limit {
		pending = pending[:limit]
	}
	if len(pending) == 0 {
		return snapshot, nil
	}

	log.Printf("[engine] %s: checking %d candidates (%d stale) on %v", identity, len(pending), len(stale), ids)
	e.checkProviders(ctx, ids, pending)
	if ctx.Err() != nil {
		// Partial checks are not written; the next request starts over.
		return nil, ctx.Err()
	}

	records, err := e.merger.UpsertStreams(ctx, identity, pending, identity.DefaultTitle())
	if err != nil {
		log.Printf("[engine] %s: upsert failed, answering from memory: %v", identity, err)
		base := records
		if base == nil {
			base = snapshot
		}
		return MergeStreams(base, pending, e.now()), nil
	}
	return records, nil
}

// checkProviders runs one availability check per provider in parallel and attaches the results.
func (e *Engine) checkProviders(ctx context.Context, ids []string, candidates []models.CandidateStream) {
	hashes := lo.Map(candidates, func(c models.CandidateStream, _ int) string { return c.Hash })
	results := make([]map[string]models.ProviderAvailabilityResult, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	for i, id := range ids {
		g.Go(func() error {
			results[i] = e.availability.CheckAvailability(gctx, id, hashes)
			return nil
		})
	}
	_ = g.Wait()

	for ci := range candidates {
		c := &candidates[ci]
		c.Availability = make(map[string]bool, len(ids))
		c.Degraded = nil
		for i, id := range ids {
			res, ok := results[i][c.Hash]
			if !ok {
				continue
			}
			c.Availability[id] = res.Cached
			if res.Degraded {
				if c.Degraded == nil {
					c.Degraded = make(map[string]bool)
				}
				c.Degraded[id] = true
			}
		}
	}
}

// entries expands records into one entry per cached, fresh provider. verifiedOnly drops
// entries whose cached state was only assumed.
func (e *Engine) entries(records []models.StreamRecord, ids []string, now time.Time, verifiedOnly bool) []RankedStream {
	ttl := e.settings.Freshness()
	var out []RankedStream
	for _, rec := range records {
		for _, id := range ids {
			if !rec.FreshOn(id, now, ttl) {
				continue
			}
			degraded := rec.Degraded[id]
			if verifiedOnly && degraded {
				continue
			}
			out = append(out, newRankedStream(rec, id, degraded))
		}
	}
	return out
}

func (e *Engine) finish(entries []RankedStream) []RankedStream {
	ranked := ranking.Rank(entries)
	if limit := e.settings.ResponseLimit; limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	if ranked == nil {
		ranked = []RankedStream{}
	}
	return ranked
}

// ResolveSelection turns a bare hash, a magnet link or a selection token into a playable URL.
// A service= tag inside the selection is used when preferredProviderID is empty.
func (e *Engine) ResolveSelection(ctx context.Context, hashOrToken, preferredProviderID string) (string, error) {
	result, err := e.Resolve(ctx, hashOrToken, preferredProviderID)
	if err != nil {
		return "", err
	}
	return result.URL, nil
}

// Resolve is ResolveSelection returning the full cascade result.
func (e *Engine) Resolve(ctx context.Context, hashOrToken, preferredProviderID string) (debrid.ResolveResult, error) {
	link, hash, service, err := magnet.Normalize(hashOrToken)
	if err != nil {
		return debrid.ResolveResult{}, streamerr.New(streamerr.KindInvalidInput, "resolve selection", err)
	}
	preferred := strings.ToLower(strings.TrimSpace(preferredProviderID))
	if preferred == "" {
		preferred = service
	}
	log.Printf("[engine] resolving %s (preferred=%q, %d providers)", hash, preferred, len(e.providers))
	return e.cascade.Resolve(ctx, link, preferred, e.providers)
}

func (e *Engine) selectProviders(requested []string) []string {
	configured := e.Providers()
	if len(requested) == 0 {
		return configured
	}
	ids := lo.Uniq(lo.FilterMap(requested, func(id string, _ int) (string, bool) {
		id = strings.ToLower(strings.TrimSpace(id))
		return id, id != ""
	}))
	return lo.Filter(ids, func(id string, _ int) bool {
		if lo.Contains(configured, id) {
			return true
		}
		log.Printf("[engine] provider %q is not configured, ignoring", id)
		return false
	})
}

func (e *Engine) shortCircuitThreshold() int {
	if e.settings.ShortCircuitThreshold > 0 {
		return e.settings.ShortCircuitThreshold
	}
	return 20
}

func (e *Engine) maxCandidates() int {
	if e.settings.MaxCandidatesToCheck > 0 {
		return e.settings.MaxCandidatesToCheck
	}
	return 50
}

func verifiedFresh(rec models.StreamRecord, id string, now time.Time, ttl time.Duration) bool {
	return rec.FreshOn(id, now, ttl) && !rec.Degraded[id]
}

func candidateFromRecord(rec models.StreamRecord) models.CandidateStream {
	return models.CandidateStream{
		Hash:       rec.Hash,
		MagnetLink: magnet.Build(rec.Hash, rec.Filename, ""),
		Filename:   rec.Filename,
		Title:      rec.DisplayTitle,
		Quality:    rec.Quality,
		SizeMB:     rec.SizeMB,
		Source:     rec.SourceName,
	}
}

var providerLabels = map[string]string{
	"realdebrid": "RD",
	"torbox":     "TB",
	"premiumize": "PM",
	"debridlink": "DL",
	"alldebrid":  "AD",
}

func newRankedStream(rec models.StreamRecord, providerID string, unverified bool) RankedStream {
	label, ok := providerLabels[providerID]
	if !ok {
		label = strings.ToUpper(providerID)
	}
	if unverified {
		label += "?"
	} else {
		label += "+"
	}

	text := rec.DisplayTitle + " " + rec.Filename
	parts := []string{mediaresolve.QualitySymbol(text)}
	if q := mediaresolve.Quality(rec.Quality).Label(); q != "" {
		parts = append(parts, q)
	}
	if rec.SizeMB > 0 {
		parts = append(parts, formatSize(rec.SizeMB))
	}
	parts = append(parts, "["+label+"]")

	features := mediaresolve.DetectVideoFeatures(rec.Filename)
	details := "🤖 " + rec.SourceName
	if len(features) > 0 {
		details += " | " + strings.Join(features, " | ")
	}

	return RankedStream{
		StreamRecord: rec.Clone(),
		ProviderID:   providerID,
		Unverified:   unverified,
		Name:         strings.Join(parts, " | "),
		Title:        rec.Filename + "\n" + details,
		Features:     features,
		Token:        magnet.EncodeToken(magnet.Build(rec.Hash, rec.Filename, providerID)),
	}
}

func formatSize(sizeMB float64) string {
	if sizeMB >= 1024 {
		return fmt.Sprintf("%.2f GB", sizeMB/1024)
	}
	return fmt.Sprintf("%.0f MB", sizeMB)
}
