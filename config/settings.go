package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// EnvConfigPath overrides the default settings location.
const EnvConfigPath = "STREAMRESOLVER_CONFIG"

// DefaultConfigPath is used when neither a flag nor the environment names a file.
const DefaultConfigPath = "cache/settings.json"

// Settings represents the application configuration persisted to disk.
type Settings struct {
	Sources         []SourceConfig           `json:"sources"`
	DebridProviders []DebridProviderSettings `json:"debridProviders"`
	Store           StoreSettings            `json:"store"`
	Engine          EngineSettings           `json:"engine"`
	Network         NetworkSettings          `json:"network"`
	Log             LogConfig                `json:"log"`
}

type SourceConfig struct {
	Name    string            `json:"name"`
	Type    string            `json:"type"`    // "torrentio", "torznab", "searchapi"
	URL     string            `json:"url"`     // Base URL; torrentio defaults to the public instance
	APIKey  string            `json:"apiKey"`  // For torznab
	Options string            `json:"options"` // For Torrentio: URL path options (e.g., "sort=qualitysize|qualityfilter=480p,scr,cam")
	Enabled bool              `json:"enabled"`
	Config  map[string]string `json:"config,omitempty"`
}

type DebridProviderSettings struct {
	Name     string            `json:"name"`
	Provider string            `json:"provider"` // registry tag: realdebrid, torbox, premiumize, debridlink, alldebrid
	APIKey   string            `json:"apiKey"`
	Enabled  bool              `json:"enabled"`
	Config   map[string]string `json:"config,omitempty"` // Provider-specific settings (e.g., "baseUrl")
}

// StoreBackend selects the ContentStore implementation.
type StoreBackend string

const (
	StoreBackendMemory StoreBackend = "memory"
	StoreBackendSQLite StoreBackend = "sqlite"
	StoreBackendBadger StoreBackend = "badger"
)

type StoreSettings struct {
	Backend    StoreBackend `json:"backend"`
	Path       string       `json:"path"`       // sqlite file or badger directory
	MaxEntries int          `json:"maxEntries"` // memory backend only
}

// EngineSettings tunes aggregation, availability and resolution.
type EngineSettings struct {
	ShortCircuitThreshold  int  `json:"shortCircuitThreshold"` // fresh cached streams that skip aggregation
	MaxCandidatesToCheck   int  `json:"maxCandidatesToCheck"`
	ResponseLimit          int  `json:"responseLimit"`
	FreshnessHours         int  `json:"freshnessHours"`
	LockTimeoutSeconds     int  `json:"lockTimeoutSeconds"`
	SourceTimeoutSeconds   int  `json:"sourceTimeoutSeconds"`
	ProviderTimeoutSeconds int  `json:"providerTimeoutSeconds"`
	PollIntervalSeconds    int  `json:"pollIntervalSeconds"`
	PollMaxAttempts        int  `json:"pollMaxAttempts"`
	ProbeURLs              bool `json:"probeUrls"`
	ProbeTimeoutSeconds    int  `json:"probeTimeoutSeconds"`
	MinVideoFileSizeMB     int  `json:"minVideoFileSizeMb"`
	RefreshTimeoutSeconds  int  `json:"refreshTimeoutSeconds"` // bounds a shared source+availability refresh
}

type NetworkSettings struct {
	ProxyURL  string `json:"proxyUrl"` // http(s):// or socks5://, applied to source requests
	UserAgent string `json:"userAgent"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	File       string `json:"file"`
	Level      string `json:"level"`
	MaxSize    int    `json:"maxSize"`
	MaxAge     int    `json:"maxAge"`
	MaxBackups int    `json:"maxBackups"`
	Compress   bool   `json:"compress"`
}

func secondsOr(v, def int) time.Duration {
	if v <= 0 {
		v = def
	}
	return time.Duration(v) * time.Second
}

func (e EngineSettings) Freshness() time.Duration {
	if e.FreshnessHours <= 0 {
		return 12 * time.Hour
	}
	return time.Duration(e.FreshnessHours) * time.Hour
}

func (e EngineSettings) LockTimeout() time.Duration     { return secondsOr(e.LockTimeoutSeconds, 10) }
func (e EngineSettings) SourceTimeout() time.Duration   { return secondsOr(e.SourceTimeoutSeconds, 10) }
func (e EngineSettings) ProviderTimeout() time.Duration { return secondsOr(e.ProviderTimeoutSeconds, 30) }
func (e EngineSettings) PollInterval() time.Duration    { return secondsOr(e.PollIntervalSeconds, 2) }
func (e EngineSettings) ProbeTimeout() time.Duration    { return secondsOr(e.ProbeTimeoutSeconds, 5) }
func (e EngineSettings) RefreshTimeout() time.Duration  { return secondsOr(e.RefreshTimeoutSeconds, 60) }

// MinVideoFileBytes is the floor below which video files are treated as samples.
func (e EngineSettings) MinVideoFileBytes() int64 {
	mb := e.MinVideoFileSizeMB
	if mb <= 0 {
		mb = 5
	}
	return int64(mb) * 1024 * 1024
}

// DefaultSettings returns sane defaults for a fresh install.
func DefaultSettings() Settings {
	return Settings{
		Sources: []SourceConfig{
			{Name: "Torrentio", Type: "torrentio", Enabled: true, Options: "sort=qualitysize|qualityfilter=480p,scr,cam"},
		},
		DebridProviders: []DebridProviderSettings{},
		Store:           StoreSettings{Backend: StoreBackendMemory, Path: "cache/streams.db", MaxEntries: 5000},
		Engine: EngineSettings{
			ShortCircuitThreshold:  20,
			MaxCandidatesToCheck:   50,
			ResponseLimit:          50,
			FreshnessHours:         12,
			LockTimeoutSeconds:     10,
			SourceTimeoutSeconds:   10,
			ProviderTimeoutSeconds: 30,
			PollIntervalSeconds:    2,
			PollMaxAttempts:        60,
			ProbeURLs:              true,
			ProbeTimeoutSeconds:    5,
			MinVideoFileSizeMB:     5,
			RefreshTimeoutSeconds:  60,
		},
		Network: NetworkSettings{UserAgent: "streamresolver/1.0"},
		Log: LogConfig{
			File:       "cache/logs/streamresolver.log",
			Level:      "info",
			MaxSize:    50,   // 50 MB per file
			MaxBackups: 3,    // keep 3 old files
			MaxAge:     7,    // 7 days
			Compress:   true, // compress old files
		},
	}
}

// Validate rejects settings the engine cannot run with.
func (s Settings) Validate() error {
	switch s.Store.Backend {
	case StoreBackendMemory, StoreBackendSQLite, StoreBackendBadger:
	default:
		return fmt.Errorf("unknown store backend %q", s.Store.Backend)
	}
	if s.Store.Backend != StoreBackendMemory && strings.TrimSpace(s.Store.Path) == "" {
		return fmt.Errorf("store backend %q requires a path", s.Store.Backend)
	}

	e := s.Engine
	for name, v := range map[string]int{
		"shortCircuitThreshold":  e.ShortCircuitThreshold,
		"maxCandidatesToCheck":   e.MaxCandidatesToCheck,
		"responseLimit":          e.ResponseLimit,
		"freshnessHours":         e.FreshnessHours,
		"lockTimeoutSeconds":     e.LockTimeoutSeconds,
		"sourceTimeoutSeconds":   e.SourceTimeoutSeconds,
		"providerTimeoutSeconds": e.ProviderTimeoutSeconds,
		"pollIntervalSeconds":    e.PollIntervalSeconds,
		"pollMaxAttempts":        e.PollMaxAttempts,
		"probeTimeoutSeconds":    e.ProbeTimeoutSeconds,
		"minVideoFileSizeMb":     e.MinVideoFileSizeMB,
		"refreshTimeoutSeconds":  e.RefreshTimeoutSeconds,
	} {
		if v < 0 {
			return fmt.Errorf("engine.%s must not be negative (got %d)", name, v)
		}
	}

	seen := make(map[string]struct{})
	for _, p := range s.DebridProviders {
		if !p.Enabled {
			continue
		}
		tag := strings.ToLower(strings.TrimSpace(p.Provider))
		if tag == "" {
			return fmt.Errorf("debrid provider %q has no provider tag", p.Name)
		}
		if _, dup := seen[tag]; dup {
			return fmt.Errorf("debrid provider %q enabled more than once", tag)
		}
		seen[tag] = struct{}{}
	}
	return nil
}

// EnabledProviderTags returns the enabled provider tags in configuration order.
func (s Settings) EnabledProviderTags() []string {
	var tags []string
	for _, p := range s.DebridProviders {
		if p.Enabled && strings.TrimSpace(p.APIKey) != "" {
			tags = append(tags, strings.ToLower(strings.TrimSpace(p.Provider)))
		}
	}
	return tags
}

// Manager loads and persists settings to a JSON file.
type Manager struct {
	fs   afero.Fs
	path string
}

// NewManager returns a Manager backed by the OS filesystem.
func NewManager(configPath string) *Manager {
	return NewManagerWithFs(afero.NewOsFs(), configPath)
}

// NewManagerWithFs returns a Manager backed by fsys.
func NewManagerWithFs(fsys afero.Fs, configPath string) *Manager {
	return &Manager{fs: fsys, path: configPath}
}

// Path returns the settings file location.
func (m *Manager) Path() string {
	return m.path
}

// EnsureDir ensures parent directory exists.
func (m *Manager) EnsureDir() error {
	dir := filepath.Dir(m.path)
	if dir == "." || dir == "" {
		return nil
	}
	return m.fs.MkdirAll(dir, 0o755)
}

// Load reads settings.json from disk or creates defaults if missing.
func (m *Manager) Load() (Settings, error) {
	if m.path == "" {
		return Settings{}, errors.New("config path not set")
	}
	if _, err := m.fs.Stat(m.path); errors.Is(err, fs.ErrNotExist) {
		// create with defaults
		defaults := DefaultSettings()
		if err := m.Save(defaults); err != nil {
			return Settings{}, err
		}
		return defaults, nil
	}
	data, err := afero.ReadFile(m.fs, m.path)
	if err != nil {
		return Settings{}, err
	}

	// Decode into a raw map first so older layouts can be migrated.
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Settings{}, fmt.Errorf("parse %s: %w", m.path, err)
	}

	// Older files named the sources "torrentScrapers" and used "jackett" for torznab indexers.
	if legacy, ok := raw["torrentScrapers"].([]interface{}); ok {
		if _, has := raw["sources"]; !has {
			for _, entry := range legacy {
				if obj, ok := entry.(map[string]interface{}); ok {
					if t, _ := obj["type"].(string); strings.EqualFold(t, "jackett") || strings.EqualFold(t, "prowlarr") {
						obj["type"] = "torznab"
					}
				}
			}
			raw["sources"] = legacy
		}
		delete(raw, "torrentScrapers")
	}

	// Provider lists used to live under "streaming".
	if streamingRaw, ok := raw["streaming"].(map[string]interface{}); ok {
		if providers, has := streamingRaw["debridProviders"]; has {
			if _, exists := raw["debridProviders"]; !exists {
				raw["debridProviders"] = providers
			}
		}
		delete(raw, "streaming")
	}

	// Re-encode and decode into Settings struct
	normalized, err := json.Marshal(raw)
	if err != nil {
		return Settings{}, err
	}
	s := DefaultSettings()
	s.Sources = nil
	if err := json.Unmarshal(normalized, &s); err != nil {
		return Settings{}, err
	}

	// Backfill zero values left by partial files
	defaults := DefaultSettings()
	if s.Sources == nil {
		s.Sources = defaults.Sources
	}
	if s.DebridProviders == nil {
		s.DebridProviders = []DebridProviderSettings{}
	}
	if s.Store.Backend == "" {
		s.Store.Backend = defaults.Store.Backend
	}
	s.Store.Backend = StoreBackend(strings.ToLower(string(s.Store.Backend)))
	if s.Store.MaxEntries == 0 {
		s.Store.MaxEntries = defaults.Store.MaxEntries
	}
	if s.Engine.ShortCircuitThreshold == 0 {
		s.Engine.ShortCircuitThreshold = defaults.Engine.ShortCircuitThreshold
	}
	if s.Engine.MaxCandidatesToCheck == 0 {
		s.Engine.MaxCandidatesToCheck = defaults.Engine.MaxCandidatesToCheck
	}
	if s.Engine.ResponseLimit == 0 {
		s.Engine.ResponseLimit = defaults.Engine.ResponseLimit
	}
	if s.Engine.PollMaxAttempts == 0 {
		s.Engine.PollMaxAttempts = defaults.Engine.PollMaxAttempts
	}
	if s.Log.MaxSize == 0 {
		s.Log.MaxSize = 50
	}
	if s.Log.MaxBackups == 0 {
		s.Log.MaxBackups = 3
	}
	if s.Log.MaxAge == 0 {
		s.Log.MaxAge = 7
	}

	if err := s.Validate(); err != nil {
		return Settings{}, fmt.Errorf("invalid settings in %s: %w", m.path, err)
	}
	return s, nil
}

// Save writes the provided settings to disk atomically.
func (m *Manager) Save(s Settings) error {
	if m.path == "" {
		return errors.New("config path not set")
	}
	if err := m.EnsureDir(); err != nil {
		return err
	}
	tmp := m.path + ".tmp"
	f, err := m.fs.Create(tmp)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		f.Close()
		_ = m.fs.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		_ = m.fs.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = m.fs.Remove(tmp)
		return err
	}
	return m.fs.Rename(tmp, m.path)
}
