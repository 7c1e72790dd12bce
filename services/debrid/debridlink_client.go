package debrid

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"streamresolver/internal/streamerr"
)

// DebridLinkClient talks to the Debrid-Link v2 seedbox API.
type DebridLinkClient struct {
	apiKey    string
	baseURL   string
	transport *providerTransport
}

var (
	_ Provider            = (*DebridLinkClient)(nil)
	_ AvailabilityChecker = (*DebridLinkClient)(nil)
	_ Configurable        = (*DebridLinkClient)(nil)
)

func NewDebridLinkClient(apiKey string) *DebridLinkClient {
	return &DebridLinkClient{
		apiKey:    strings.TrimSpace(apiKey),
		baseURL:   "https://debrid-link.com/api/v2",
		transport: newProviderTransport("debridlink"),
	}
}

func init() {
	RegisterProvider("debridlink", func(apiKey string) Provider {
		return NewDebridLinkClient(apiKey)
	})
}

func (c *DebridLinkClient) Name() string { return "debridlink" }

// Configure accepts "baseUrl".
func (c *DebridLinkClient) Configure(cfg map[string]string) {
	if v := strings.TrimSpace(cfg["baseUrl"]); v != "" {
		c.baseURL = strings.TrimRight(v, "/")
	}
}

func (c *DebridLinkClient) BatchSize() int            { return 99 }
func (c *DebridLinkClient) BatchDelay() time.Duration { return 500 * time.Millisecond }

type debridLinkResponse[T any] struct {
	Success bool   `json:"success"`
	Value   T      `json:"value"`
	Error   string `json:"error,omitempty"`
}

type debridLinkTorrent struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	HashString      string           `json:"hashString"`
	TotalSize       int64            `json:"totalSize"`
	Status          int              `json:"status"`
	ErrorCode       int              `json:"error"`
	DownloadPercent float64          `json:"downloadPercent"`
	Files           []debridLinkFile `json:"files"`
}

type debridLinkFile struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Size            int64   `json:"size"`
	DownloadURL     string  `json:"downloadUrl"`
	DownloadPercent float64 `json:"downloadPercent"`
}

func (c *DebridLinkClient) send(ctx context.Context, method, path string, payload any, op string, out any) error {
	if c.apiKey == "" {
		return streamerr.Newf(streamerr.KindNotEntitled, op, "debrid-link API key not configured")
	}
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return streamerr.New(streamerr.KindPermanentError, op, err)
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return streamerr.New(streamerr.KindPermanentError, op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.transport.doJSON(req, op, out)
}

// CheckAvailability queries seedbox/cached; cached hashes appear as keys of value.
func (c *DebridLinkClient) CheckAvailability(ctx context.Context, hashes []string) (map[string]bool, error) {
	if len(hashes) == 0 {
		return map[string]bool{}, nil
	}
	query := url.Values{}
	query.Set("url", strings.Join(hashes, ","))

	var result debridLinkResponse[json.RawMessage]
	if err := c.send(ctx, http.MethodGet, "/seedbox/cached?"+query.Encode(), nil, "seedbox cached", &result); err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, c.transport.failMessage("seedbox cached", result.Error)
	}

	cached := make(map[string]bool, len(hashes))
	for _, h := range hashes {
		cached[h] = false
	}
	var found map[string]json.RawMessage
	if len(result.Value) > 0 && result.Value[0] == '{' {
		if err := json.Unmarshal(result.Value, &found); err != nil {
			return nil, c.transport.fail(streamerr.KindTransientError, "seedbox cached", err)
		}
	}
	for key := range found {
		h := strings.ToLower(key)
		if _, ok := cached[h]; ok {
			cached[h] = true
		}
	}
	return cached, nil
}

// AddMagnet adds the magnet to the seedbox asynchronously.
func (c *DebridLinkClient) AddMagnet(ctx context.Context, magnetURL string) (*AddMagnetResult, error) {
	trimmed := strings.TrimSpace(magnetURL)
	if trimmed == "" {
		return nil, streamerr.Newf(streamerr.KindInvalidInput, "seedbox add", "magnet URL is required")
	}
	payload := map[string]any{"url": trimmed, "async": true}

	var result debridLinkResponse[debridLinkTorrent]
	if err := c.send(ctx, http.MethodPost, "/seedbox/add", payload, "seedbox add", &result); err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, c.transport.failMessage("seedbox add", result.Error)
	}
	if result.Value.ID == "" {
		return nil, c.transport.failMessage("seedbox add", "no torrent id returned")
	}
	log.Printf("[debridlink] magnet added: id=%s name=%s", result.Value.ID, result.Value.Name)
	return &AddMagnetResult{ID: result.Value.ID, URI: trimmed}, nil
}

// GetTorrentInfo fetches the torrent from seedbox/list.
func (c *DebridLinkClient) GetTorrentInfo(ctx context.Context, torrentID string) (*TorrentInfo, error) {
	trimmedID := strings.TrimSpace(torrentID)
	if trimmedID == "" {
		return nil, streamerr.Newf(streamerr.KindInvalidInput, "seedbox list", "torrent ID is required")
	}

	var result debridLinkResponse[[]debridLinkTorrent]
	if err := c.send(ctx, http.MethodGet, "/seedbox/list?ids="+url.QueryEscape(trimmedID), nil, "seedbox list", &result); err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, c.transport.failMessage("seedbox list", result.Error)
	}
	if len(result.Value) == 0 {
		return nil, c.transport.fail(streamerr.KindPermanentError, "seedbox list", errNoContent)
	}

	torrent := result.Value[0]
	info := &TorrentInfo{
		ID:       torrent.ID,
		Filename: torrent.Name,
		Hash:     strings.ToLower(torrent.HashString),
		Bytes:    torrent.TotalSize,
		Status:   mapDebridLinkStatus(torrent),
		Files:    make([]File, 0, len(torrent.Files)),
	}
	for i, f := range torrent.Files {
		info.Files = append(info.Files, File{
			ID:       i + 1,
			Path:     f.Name,
			Bytes:    f.Size,
			Selected: 1,
			Link:     f.DownloadURL,
		})
	}
	return info, nil
}

func mapDebridLinkStatus(t debridLinkTorrent) string {
	switch {
	case t.ErrorCode != 0:
		return StatusError
	case t.DownloadPercent >= 100:
		return StatusDownloaded
	case t.DownloadPercent > 0:
		return StatusDownloading
	default:
		return StatusQueued
	}
}

// SelectFiles is a no-op; the seedbox keeps every file.
func (c *DebridLinkClient) SelectFiles(ctx context.Context, torrentID string, fileIDs string) error {
	return nil
}

// UnrestrictLink returns seedbox download URLs unchanged.
func (c *DebridLinkClient) UnrestrictLink(ctx context.Context, link string) (*UnrestrictResult, error) {
	trimmed := strings.TrimSpace(link)
	if trimmed == "" {
		return nil, streamerr.Newf(streamerr.KindInvalidInput, "unrestrict", "link is required")
	}
	return &UnrestrictResult{ID: trimmed, DownloadURL: trimmed}, nil
}
