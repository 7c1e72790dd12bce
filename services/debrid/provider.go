package debrid

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"streamresolver/config"
)

//go:generate mockgen -source=provider.go -destination=mocks/mock_provider.go -package=mocks -exclude_interfaces=Configurable

// Provider defines the interface that all debrid providers must implement.
// The resolution cascade drives every provider through the same add, poll,
// select and unrestrict steps.
type Provider interface {
	// Name returns the provider identifier (e.g., "realdebrid", "torbox").
	Name() string

	// AddMagnet adds a magnet link and returns the torrent/download ID.
	AddMagnet(ctx context.Context, magnetURL string) (*AddMagnetResult, error)

	// GetTorrentInfo retrieves information about a torrent by ID.
	GetTorrentInfo(ctx context.Context, torrentID string) (*TorrentInfo, error)

	// SelectFiles selects which files to download from a torrent.
	// Pass "all" to select all files, or a comma-separated list of file IDs.
	SelectFiles(ctx context.Context, torrentID string, fileIDs string) error

	// UnrestrictLink converts a provider file reference to a public download URL.
	UnrestrictLink(ctx context.Context, link string) (*UnrestrictResult, error)
}

// AvailabilityChecker is implemented by providers that can report cache state for
// many hashes in one call. Providers without it are always checked in degraded mode.
type AvailabilityChecker interface {
	// CheckAvailability returns the cached state of every hash in the batch.
	// Hashes missing from the map are treated as not cached.
	CheckAvailability(ctx context.Context, hashes []string) (map[string]bool, error)
	// BatchSize is the largest batch the endpoint accepts.
	BatchSize() int
	// BatchDelay is the pause between consecutive batches.
	BatchDelay() time.Duration
}

// CheckingProvider is a Provider that can also verify cache state in bulk.
type CheckingProvider interface {
	Provider
	AvailabilityChecker
}

// ErrAvailabilityDisabled is returned by CheckAvailability when the provider has
// switched its verification endpoint off.
var ErrAvailabilityDisabled = errors.New("availability endpoint disabled by provider")

var errNoContent = errors.New("no files returned")

// Configurable is an optional interface for providers that support runtime configuration.
type Configurable interface {
	// Configure sets provider-specific options from a config map.
	Configure(config map[string]string)
}

// AddMagnetResult contains the result of adding a magnet link.
type AddMagnetResult struct {
	ID  string // Provider-specific torrent/download ID
	URI string // Optional: URI for the added item
}

// UnrestrictResult contains the result of unrestricting a link.
type UnrestrictResult struct {
	ID          string // Provider-specific ID
	Filename    string // Resolved filename
	MimeType    string // MIME type of the file
	Filesize    int64  // Size in bytes
	DownloadURL string // Direct download URL
}

// Provider-agnostic torrent states.
const (
	StatusMagnetConversion = "magnet_conversion"
	StatusWaitingFiles     = "waiting_files_selection"
	StatusQueued           = "queued"
	StatusDownloading      = "downloading"
	StatusDownloaded       = "downloaded"
	StatusError            = "error"
)

// TorrentInfo represents detailed information about a torrent.
type TorrentInfo struct {
	ID       string   `json:"id"`
	Filename string   `json:"filename"`
	Hash     string   `json:"hash"`
	Bytes    int64    `json:"bytes"`
	Status   string   `json:"status"`
	Files    []File   `json:"files,omitempty"`
	Links    []string `json:"links,omitempty"` // one per selected file, in file order
}

// File represents a file within a torrent.
type File struct {
	ID       int    `json:"id"`
	Path     string `json:"path"`
	Bytes    int64  `json:"bytes"`
	Selected int    `json:"selected"`       // 0 = not selected, 1 = selected
	Link     string `json:"link,omitempty"` // set when the provider links files directly
}

// LinkFor returns the restricted link for the file with the given ID.
// Files without their own link map positionally onto Links among selected files.
func (t *TorrentInfo) LinkFor(fileID int) (string, bool) {
	idx := 0
	for _, f := range t.Files {
		if f.Selected == 0 {
			continue
		}
		if f.ID == fileID {
			if f.Link != "" {
				return f.Link, true
			}
			if idx < len(t.Links) {
				return t.Links[idx], true
			}
			return "", false
		}
		idx++
	}
	return "", false
}

// ProviderFactory is a function that creates a new Provider instance with the given API key.
type ProviderFactory func(apiKey string) Provider

// Registry manages registered debrid provider factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]ProviderFactory
}

// NewRegistry creates a new provider registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]ProviderFactory),
	}
}

// Register adds a provider factory to the registry.
func (r *Registry) Register(name string, factory ProviderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strings.ToLower(name)] = factory
}

// Get retrieves a provider factory by name and creates a new instance.
func (r *Registry) Get(name, apiKey string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	factory, ok := r.factories[strings.ToLower(name)]
	if !ok {
		return nil, false
	}
	return factory(apiKey), true
}

// MustGet retrieves a provider by name or returns an error.
func (r *Registry) MustGet(name, apiKey string) (Provider, error) {
	p, ok := r.Get(name, apiKey)
	if !ok {
		return nil, fmt.Errorf("provider %q not registered", name)
	}
	return p, nil
}

// IsRegistered checks if a provider is registered.
func (r *Registry) IsRegistered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[strings.ToLower(name)]
	return ok
}

// List returns all registered provider names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build instantiates every enabled provider with an API key, in configuration order.
// Unknown provider tags are logged and skipped.
func (r *Registry) Build(settings []config.DebridProviderSettings) []Provider {
	var providers []Provider
	for _, ps := range settings {
		if !ps.Enabled || strings.TrimSpace(ps.APIKey) == "" {
			continue
		}
		p, err := r.MustGet(ps.Provider, ps.APIKey)
		if err != nil {
			log.Printf("[debrid] skipping provider %q: %v", ps.Name, err)
			continue
		}
		if c, ok := p.(Configurable); ok && len(ps.Config) > 0 {
			c.Configure(ps.Config)
		}
		providers = append(providers, p)
	}
	return providers
}

// DefaultRegistry is the global provider registry.
var DefaultRegistry = NewRegistry()

// RegisterProvider registers a provider factory with the default registry.
func RegisterProvider(name string, factory ProviderFactory) {
	DefaultRegistry.Register(name, factory)
}
