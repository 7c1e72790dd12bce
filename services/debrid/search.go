package debrid

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"

	"streamresolver/internal/magnet"
	"streamresolver/internal/mediaresolve"
	"streamresolver/internal/metrics"
	"streamresolver/internal/streamerr"
	"streamresolver/models"
)

const defaultSourceTimeout = 10 * time.Second

// Aggregator fans a content identity out to every configured source and merges the
// answers into one deduplicated candidate list.
type Aggregator struct {
	scrapers      []Scraper
	sourceTimeout time.Duration
}

// NewAggregator keeps the scraper order; it decides which source wins a duplicate hash.
func NewAggregator(scrapers []Scraper, sourceTimeout time.Duration) *Aggregator {
	if sourceTimeout <= 0 {
		sourceTimeout = defaultSourceTimeout
	}
	kept := make([]Scraper, 0, len(scrapers))
	for _, s := range scrapers {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &Aggregator{scrapers: kept, sourceTimeout: sourceTimeout}
}

// Sources returns the configured source names in order.
func (a *Aggregator) Sources() []string {
	names := make([]string, len(a.scrapers))
	for i, s := range a.scrapers {
		names[i] = s.Name()
	}
	return names
}

type sourceOutcome struct {
	results []ScrapeResult
	err     error
}

// Aggregate queries all sources concurrently, each under its own timeout. A failing source
// contributes nothing; the returned error only describes those failures and never means the
// candidate list is unusable.
func (a *Aggregator) Aggregate(ctx context.Context, identity models.ContentIdentity) ([]models.CandidateStream, error) {
	if len(a.scrapers) == 0 {
		return nil, nil
	}

	req := SearchRequest{Identity: identity}
	outcomes := make([]sourceOutcome, len(a.scrapers))

	p := pool.New().WithMaxGoroutines(len(a.scrapers))
	for i, scraper := range a.scrapers {
		p.Go(func() {
			outcomes[i] = a.searchOne(ctx, scraper, req)
		})
	}
	p.Wait()

	var (
		candidates []models.CandidateStream
		errs       []error
		seen       = make(map[string]struct{})
	)
	for i, scraper := range a.scrapers {
		outcome := outcomes[i]
		if outcome.err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", scraper.Name(), outcome.err))
			continue
		}
		for _, res := range outcome.results {
			candidate, ok := normalizeScrapeResult(res, scraper.Name())
			if !ok {
				continue
			}
			if identity.IsSeries() && !matchesIdentityEpisode(candidate, identity) {
				continue
			}
			if _, dup := seen[candidate.Hash]; dup {
				continue
			}
			seen[candidate.Hash] = struct{}{}
			candidates = append(candidates, candidate)
		}
	}

	log.Printf("[aggregator] %s: %d unique candidates from %d sources (%d failed)",
		identity, len(candidates), len(a.scrapers), len(errs))

	if len(errs) > 0 {
		return candidates, streamerr.New(streamerr.KindSourceUnavailable, "aggregate", errors.Join(errs...))
	}
	return candidates, nil
}

func (a *Aggregator) searchOne(ctx context.Context, scraper Scraper, req SearchRequest) sourceOutcome {
	name := scraper.Name()
	ctx, cancel := context.WithTimeout(ctx, a.sourceTimeout)
	defer cancel()

	start := time.Now()
	results, err := scraper.Search(ctx, req)
	metrics.SourceDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SourceFailures.WithLabelValues(name).Inc()
		log.Printf("[aggregator] %s search failed: %v", name, err)
		return sourceOutcome{err: err}
	}
	metrics.SourceResults.WithLabelValues(name).Add(float64(len(results)))
	log.Printf("[aggregator] %s search produced %d results in %s", name, len(results), time.Since(start).Round(10*time.Millisecond))
	return sourceOutcome{results: results}
}

// normalizeScrapeResult turns a raw source result into a candidate. Results without a
// recognisable info hash are dropped.
func normalizeScrapeResult(res ScrapeResult, source string) (models.CandidateStream, bool) {
	link := strings.TrimSpace(res.Magnet)
	hash, err := magnet.ExtractInfoHash(link)
	if err != nil && magnet.IsInfoHash(res.InfoHash) {
		hash, err = strings.ToLower(strings.TrimSpace(res.InfoHash)), nil
	}
	if err != nil {
		return models.CandidateStream{}, false
	}

	title := strings.TrimSpace(res.Title)
	filename := strings.TrimSpace(res.Filename)
	if filename == "" {
		filename = title
	}
	if filename == "" {
		filename = "Unknown"
	}
	if title == "" {
		title = filename
	}
	if !strings.HasPrefix(strings.ToLower(link), "magnet:") {
		link = magnet.Build(hash, filename, "")
	}

	quality := mediaresolve.ParseQuality(res.Quality)
	if quality == mediaresolve.QualityUnknown {
		quality = mediaresolve.ParseQuality(title + " " + filename)
	}

	sizeMB := 0.0
	switch {
	case res.SizeBytes > 0:
		sizeMB = float64(res.SizeBytes) / (1024 * 1024)
	case res.Size != "":
		sizeMB = mediaresolve.ParseSizeMB(res.Size)
	}
	if sizeMB == 0 {
		sizeMB = mediaresolve.ParseSizeMB(title)
	}

	if res.Source != "" {
		source = res.Source
	}

	return models.CandidateStream{
		Hash:       hash,
		MagnetLink: link,
		Filename:   filename,
		Title:      title,
		Quality:    int(quality),
		SizeMB:     sizeMB,
		Source:     source,
	}, true
}

func matchesIdentityEpisode(c models.CandidateStream, identity models.ContentIdentity) bool {
	if mediaresolve.MatchesEpisode(c.Title, identity.Season, identity.Episode) {
		return true
	}
	return c.Filename != c.Title && mediaresolve.MatchesEpisode(c.Filename, identity.Season, identity.Episode)
}
