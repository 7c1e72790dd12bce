package models

import "time"

// StreamRecord is one physically distinct torrent known for a ContentIdentity.
type StreamRecord struct {
	Hash          string               `json:"hash"` // lowercase 40-hex info hash
	Filename      string               `json:"filename"`
	DisplayTitle  string               `json:"displayTitle"`
	Quality       int                  `json:"quality"` // 2160, 1080, 720, 480 or 0 when unknown
	SizeMB        float64              `json:"sizeMb"`
	SourceName    string               `json:"source"`
	Availability  map[string]bool      `json:"availability"`        // provider id -> last known cached state
	Degraded      map[string]bool      `json:"degraded,omitempty"`  // provider id -> cached state was assumed, not verified
	CheckedAt     map[string]time.Time `json:"checkedAt,omitempty"` // provider id -> when its flag was last written
	LastCheckedAt time.Time            `json:"lastCheckedAt"`
	AddedAt       time.Time            `json:"addedAt"`
}

// CachedOn reports the last known availability on a provider.
func (s StreamRecord) CachedOn(providerID string) bool {
	return s.Availability[providerID]
}

// FreshOn reports whether a cached result for providerID can still be trusted at now.
// Records written before per-provider times existed fall back to LastCheckedAt.
func (s StreamRecord) FreshOn(providerID string, now time.Time, ttl time.Duration) bool {
	if !s.Availability[providerID] {
		return false
	}
	checked, ok := s.CheckedAt[providerID]
	if !ok {
		checked = s.LastCheckedAt
	}
	if checked.IsZero() {
		return false
	}
	return now.Sub(checked) < ttl
}

// Clone returns a deep copy so callers can never alias the store's maps.
func (s StreamRecord) Clone() StreamRecord {
	out := s
	out.Availability = cloneFlags(s.Availability)
	out.Degraded = cloneFlags(s.Degraded)
	if s.CheckedAt != nil {
		out.CheckedAt = make(map[string]time.Time, len(s.CheckedAt))
		for k, v := range s.CheckedAt {
			out.CheckedAt[k] = v
		}
	}
	return out
}

func cloneFlags(in map[string]bool) map[string]bool {
	if in == nil {
		return nil
	}
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// ContentRecord owns the insertion-ordered streams for a single identity.
type ContentRecord struct {
	Identity      ContentIdentity `json:"identity"`
	Title         string          `json:"title"`
	Streams       []StreamRecord  `json:"streams"`
	LastUpdatedAt time.Time       `json:"lastUpdatedAt"`
}

// Key returns the canonical storage key of the record's identity.
func (c ContentRecord) Key() string {
	return c.Identity.Key()
}

// Clone deep-copies the record and its streams.
func (c ContentRecord) Clone() ContentRecord {
	out := c
	out.Streams = CloneStreams(c.Streams)
	return out
}

// CloneStreams deep-copies a slice of stream records.
func CloneStreams(in []StreamRecord) []StreamRecord {
	if in == nil {
		return nil
	}
	out := make([]StreamRecord, len(in))
	for i, s := range in {
		out[i] = s.Clone()
	}
	return out
}

// CandidateStream is a normalized, hash-bearing result produced by the aggregator.
type CandidateStream struct {
	Hash         string
	MagnetLink   string
	Filename     string
	Title        string
	Quality      int
	SizeMB       float64
	Source       string
	Availability map[string]bool
	Degraded     map[string]bool
}

// ProviderAvailabilityResult is the outcome of an availability check for one hash.
// Degraded results were assumed because the provider could not verify them.
type ProviderAvailabilityResult struct {
	Hash     string `json:"hash"`
	Cached   bool   `json:"cached"`
	Degraded bool   `json:"degraded"`
	Error    string `json:"error,omitempty"`
}

// ResolutionStatus is the per-provider result of a resolution attempt.
type ResolutionStatus string

const (
	ResolutionReady          ResolutionStatus = "ready"
	ResolutionNotCached      ResolutionStatus = "not_cached"
	ResolutionNotEntitled    ResolutionStatus = "not_entitled"
	ResolutionRateLimited    ResolutionStatus = "rate_limited"
	ResolutionTransientError ResolutionStatus = "transient_error"
	ResolutionPermanentError ResolutionStatus = "permanent_error"
)

// ResolutionOutcome records how one provider handled a resolution attempt.
type ResolutionOutcome struct {
	ProviderID string           `json:"provider"`
	Status     ResolutionStatus `json:"status"`
	URL        string           `json:"url,omitempty"`
	Reason     string           `json:"reason,omitempty"`
}
