package debrid

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"streamresolver/internal/magnet"
	"streamresolver/internal/mediaresolve"
	"streamresolver/internal/metrics"
	"streamresolver/internal/streamerr"
	"streamresolver/models"
)

// CascadeOptions bounds each provider attempt.
type CascadeOptions struct {
	PollInterval      time.Duration
	MaxPollAttempts   int
	ProviderTimeout   time.Duration // per provider API call
	MinVideoFileBytes int64
	Prober            URLProber // nil disables probing
}

func (o CascadeOptions) withDefaults() CascadeOptions {
	if o.PollInterval <= 0 {
		o.PollInterval = 2 * time.Second
	}
	if o.MaxPollAttempts <= 0 {
		o.MaxPollAttempts = 60
	}
	if o.ProviderTimeout <= 0 {
		o.ProviderTimeout = 30 * time.Second
	}
	if o.MinVideoFileBytes <= 0 {
		o.MinVideoFileBytes = 5 * 1024 * 1024
	}
	return o
}

// ResolveResult is a successful resolution plus every attempt that preceded it.
type ResolveResult struct {
	URL        string
	ProviderID string
	Hash       string
	Filename   string
	Outcomes   []models.ResolutionOutcome
}

// Cascade turns a magnet into a playable URL by trying providers one at a
// time. Providers are never raced: the first success wins.
type Cascade struct {
	opts CascadeOptions
}

func NewCascade(opts CascadeOptions) *Cascade {
	return &Cascade{opts: opts.withDefaults()}
}

// Resolve runs the cascade. Failures are an InvalidInput error for a magnet
// without an info hash, or *streamerr.AllProvidersFailedError.
func (c *Cascade) Resolve(ctx context.Context, magnetLink, preferredProviderID string, providers []Provider) (ResolveResult, error) {
	start := time.Now()
	defer func() { metrics.CascadeDuration.Observe(time.Since(start).Seconds()) }()

	hash, err := magnet.ExtractInfoHash(magnetLink)
	if err != nil {
		return ResolveResult{}, streamerr.New(streamerr.KindInvalidInput, "resolve", err)
	}

	attemptID := uuid.NewString()[:8]
	ordered := OrderProviders(providers, preferredProviderID)
	hints := mediaresolve.SelectionHints{ReleaseTitle: magnet.DisplayName(magnetLink), TargetSeason: -1}
	result := ResolveResult{Hash: hash}

	log.Printf("[cascade] %s: resolving %s across %d providers (preferred=%q)", attemptID, hash, len(ordered), preferredProviderID)

	for _, p := range ordered {
		name := p.Name()
		attemptStart := time.Now()
		resolved, filename, err := c.attempt(ctx, p, magnetLink, hash, hints)
		if err == nil {
			result.URL = resolved
			result.ProviderID = name
			result.Filename = filename
			result.Outcomes = append(result.Outcomes, models.ResolutionOutcome{ProviderID: name, Status: models.ResolutionReady, URL: resolved})
			metrics.CascadeOutcomes.WithLabelValues(name, string(models.ResolutionReady)).Inc()
			log.Printf("[cascade] %s: %s ready via %s in %v (total %v)", attemptID, hash, name, time.Since(attemptStart), time.Since(start))
			return result, nil
		}

		err = streamerr.WithProvider(name, err)
		status := streamerr.KindOf(err).Status()
		result.Outcomes = append(result.Outcomes, models.ResolutionOutcome{ProviderID: name, Status: status, Reason: err.Error()})
		metrics.CascadeOutcomes.WithLabelValues(name, string(status)).Inc()
		log.Printf("[cascade] %s: %s failed on %s after %v: %v", attemptID, hash, name, time.Since(attemptStart), err)

		if ctx.Err() != nil {
			break
		}
	}

	return result, &streamerr.AllProvidersFailedError{Hash: hash, Outcomes: result.Outcomes}
}

// OrderProviders moves the preferred provider to the front; the rest keep
// their configured order.
func OrderProviders(providers []Provider, preferredProviderID string) []Provider {
	ordered := append([]Provider(nil), providers...)
	preferred := strings.ToLower(strings.TrimSpace(preferredProviderID))
	if preferred == "" {
		return ordered
	}
	_, idx, found := lo.FindIndexOf(ordered, func(p Provider) bool {
		return strings.ToLower(p.Name()) == preferred
	})
	if !found || idx == 0 {
		return ordered
	}
	head := ordered[idx]
	copy(ordered[1:idx+1], ordered[:idx])
	ordered[0] = head
	return ordered
}

func (c *Cascade) attempt(ctx context.Context, p Provider, magnetLink, hash string, hints mediaresolve.SelectionHints) (string, string, error) {
	if checker, ok := p.(AvailabilityChecker); ok {
		cached, err := call(ctx, c.opts.ProviderTimeout, func(ctx context.Context) (map[string]bool, error) {
			return checker.CheckAvailability(ctx, []string{hash})
		})
		switch {
		case err != nil:
			log.Printf("[cascade] %s pre-check unavailable, continuing: %v", p.Name(), err)
		case !cached[hash]:
			return "", "", streamerr.Newf(streamerr.KindNotCached, "pre-check", "%s not cached", hash)
		}
	}

	added, err := call(ctx, c.opts.ProviderTimeout, func(ctx context.Context) (*AddMagnetResult, error) {
		return p.AddMagnet(ctx, magnetLink)
	})
	if err != nil {
		return "", "", err
	}

	info, err := c.waitReady(ctx, p, added.ID)
	if err != nil {
		return "", "", err
	}

	candidates, files := selectableFiles(info)
	if hints.ReleaseTitle == "" {
		hints.ReleaseTitle = info.Filename
	}
	idx, reason := mediaresolve.SelectBestFile(candidates, hints)
	if idx < 0 {
		return "", "", streamerr.Newf(streamerr.KindPermanentError, "select file", "%s", reason)
	}
	chosen := files[idx]
	log.Printf("[cascade] %s torrent %s: chose %q (%s, %d bytes)", p.Name(), info.ID, chosen.Path, reason, chosen.Bytes)

	link, ok := info.LinkFor(chosen.ID)
	if !ok {
		return "", "", streamerr.Newf(streamerr.KindTransientError, "select file", "no link for file %d", chosen.ID)
	}

	unrestricted, err := call(ctx, c.opts.ProviderTimeout, func(ctx context.Context) (*UnrestrictResult, error) {
		return p.UnrestrictLink(ctx, link)
	})
	if err != nil {
		return "", "", err
	}
	if err := validatePlayableURL(unrestricted.DownloadURL); err != nil {
		return "", "", streamerr.New(streamerr.KindPermanentError, "unrestrict", err)
	}

	if c.opts.Prober != nil {
		if err := c.opts.Prober.Probe(ctx, unrestricted.DownloadURL); err != nil {
			log.Printf("[cascade] %s probe failed for %s, keeping URL: %v", p.Name(), redactURL(unrestricted.DownloadURL), err)
		}
	}

	filename := unrestricted.Filename
	if filename == "" {
		filename = path.Base(chosen.Path)
	}
	return unrestricted.DownloadURL, filename, nil
}

// waitReady polls until the torrent is downloaded, selecting video files when
// the provider asks for a selection.
func (c *Cascade) waitReady(ctx context.Context, p Provider, torrentID string) (*TorrentInfo, error) {
	selected := false
	for attempt := 1; attempt <= c.opts.MaxPollAttempts; attempt++ {
		info, err := call(ctx, c.opts.ProviderTimeout, func(ctx context.Context) (*TorrentInfo, error) {
			return p.GetTorrentInfo(ctx, torrentID)
		})
		if err != nil {
			return nil, err
		}

		switch info.Status {
		case StatusDownloaded:
			return info, nil
		case StatusError:
			return nil, streamerr.Newf(streamerr.KindPermanentError, "poll", "torrent %s failed on provider", torrentID)
		case StatusWaitingFiles:
			if !selected {
				if err := c.selectVideoFiles(ctx, p, info); err != nil {
					return nil, err
				}
				selected = true
				continue
			}
		}

		if attempt == c.opts.MaxPollAttempts {
			break
		}
		timer := time.NewTimer(c.opts.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, streamerr.New(streamerr.KindTransientError, "poll", ctx.Err())
		case <-timer.C:
		}
	}
	return nil, streamerr.Newf(streamerr.KindNotCached, "poll", "torrent %s not ready after %d polls", torrentID, c.opts.MaxPollAttempts)
}

func (c *Cascade) selectVideoFiles(ctx context.Context, p Provider, info *TorrentInfo) error {
	candidates := make([]mediaresolve.FileCandidate, 0, len(info.Files))
	for _, f := range info.Files {
		candidates = append(candidates, mediaresolve.FileCandidate{ID: strconv.Itoa(f.ID), Path: f.Path, SizeBytes: f.Bytes})
	}
	ids := mediaresolve.SelectVideoFiles(candidates, c.opts.MinVideoFileBytes)
	if len(ids) == 0 {
		return streamerr.Newf(streamerr.KindPermanentError, "select files", "no video files above %d bytes", c.opts.MinVideoFileBytes)
	}
	_, err := call(ctx, c.opts.ProviderTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, p.SelectFiles(ctx, info.ID, strings.Join(ids, ","))
	})
	return err
}

// selectableFiles returns the selected files, or every file when the provider
// reports no selection at all.
func selectableFiles(info *TorrentInfo) ([]mediaresolve.FileCandidate, []File) {
	files := lo.Filter(info.Files, func(f File, _ int) bool { return f.Selected != 0 })
	if len(files) == 0 {
		files = info.Files
	}
	candidates := lo.Map(files, func(f File, _ int) mediaresolve.FileCandidate {
		return mediaresolve.FileCandidate{ID: strconv.Itoa(f.ID), Path: f.Path, SizeBytes: f.Bytes}
	})
	return candidates, files
}

func validatePlayableURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid download URL: %w", err)
	}
	if !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("download URL %q is not an absolute http(s) URL", raw)
	}
	switch strings.ToLower(path.Ext(u.Path)) {
	case ".rar", ".zip", ".7z", ".tar", ".tgz":
		return fmt.Errorf("download URL points to an archive")
	}
	return nil
}

// call runs fn under a per-call timeout derived from ctx.
func call[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	out, err := fn(callCtx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		var zero T
		return zero, streamerr.New(streamerr.KindTransientError, "provider call", fmt.Errorf("timed out after %v: %w", timeout, err))
	}
	return out, err
}
