package debrid

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"streamresolver/internal/streamerr"
)

// TorboxClient handles API interactions with the TorBox service.
type TorboxClient struct {
	apiKey    string
	baseURL   string
	transport *providerTransport
}

var (
	_ Provider            = (*TorboxClient)(nil)
	_ AvailabilityChecker = (*TorboxClient)(nil)
	_ Configurable        = (*TorboxClient)(nil)
)

// NewTorboxClient creates a new TorBox API client.
func NewTorboxClient(apiKey string) *TorboxClient {
	return &TorboxClient{
		apiKey:    strings.TrimSpace(apiKey),
		baseURL:   "https://api.torbox.app/v1/api",
		transport: newProviderTransport("torbox"),
	}
}

func init() {
	RegisterProvider("torbox", func(apiKey string) Provider {
		return NewTorboxClient(apiKey)
	})
}

// Name returns the provider identifier.
func (c *TorboxClient) Name() string {
	return "torbox"
}

// Configure accepts "baseUrl".
func (c *TorboxClient) Configure(cfg map[string]string) {
	if v := strings.TrimSpace(cfg["baseUrl"]); v != "" {
		c.baseURL = strings.TrimRight(v, "/")
	}
}

func (c *TorboxClient) BatchSize() int            { return 50 }
func (c *TorboxClient) BatchDelay() time.Duration { return 100 * time.Millisecond }

// torboxResponse is the generic API response wrapper.
type torboxResponse[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Detail  string `json:"detail"`
	Error   string `json:"error,omitempty"`
}

func (r torboxResponse[T]) message() string {
	if r.Error != "" && r.Detail != "" {
		return r.Error + ": " + r.Detail
	}
	return r.Error + r.Detail
}

type torboxCreateTorrentData struct {
	TorrentID int    `json:"torrent_id"`
	Name      string `json:"name"`
	Hash      string `json:"hash"`
}

type torboxTorrent struct {
	ID               int          `json:"id"`
	Hash             string       `json:"hash"`
	Size             int64        `json:"size"`
	DownloadState    string       `json:"download_state"`
	DownloadFinished bool         `json:"download_finished"`
	Name             string       `json:"name"`
	Files            []torboxFile `json:"files"`
}

type torboxFile struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	ShortName string `json:"short_name"`
	Size      int64  `json:"size"`
}

type torboxCachedItem struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	Hash string `json:"hash"`
}

func (c *TorboxClient) newRequest(ctx context.Context, method, path string, form url.Values) (*http.Request, error) {
	if c.apiKey == "" {
		return nil, streamerr.Newf(streamerr.KindNotEntitled, path, "torbox API key not configured")
	}
	var (
		req *http.Request
		err error
	)
	if form != nil {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, strings.NewReader(form.Encode()))
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	}
	if err != nil {
		return nil, streamerr.New(streamerr.KindPermanentError, path, err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	return req, nil
}

// CheckAvailability calls checkcached for the whole batch in list format.
func (c *TorboxClient) CheckAvailability(ctx context.Context, hashes []string) (map[string]bool, error) {
	if len(hashes) == 0 {
		return map[string]bool{}, nil
	}
	query := url.Values{}
	query.Set("hash", strings.Join(hashes, ","))
	query.Set("format", "list")
	query.Set("list_files", "true")
	req, err := c.newRequest(ctx, http.MethodGet, "/torrents/checkcached?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var result torboxResponse[json.RawMessage]
	if err := c.transport.doJSON(req, "check cached", &result); err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, c.transport.failMessage("check cached", result.message())
	}

	cached := make(map[string]bool, len(hashes))
	for _, h := range hashes {
		cached[h] = false
	}
	// Uncached batches come back as null or {}; only a list carries hits.
	var items []torboxCachedItem
	if len(result.Data) > 0 && result.Data[0] == '[' {
		if err := json.Unmarshal(result.Data, &items); err != nil {
			return nil, c.transport.fail(streamerr.KindTransientError, "check cached", fmt.Errorf("decode cached list: %w", err))
		}
	}
	for _, item := range items {
		h := strings.ToLower(item.Hash)
		if _, ok := cached[h]; ok {
			cached[h] = true
		}
	}
	return cached, nil
}

// AddMagnet adds a magnet link to TorBox and returns the torrent ID.
func (c *TorboxClient) AddMagnet(ctx context.Context, magnetURL string) (*AddMagnetResult, error) {
	trimmedMagnet := strings.TrimSpace(magnetURL)
	if trimmedMagnet == "" {
		return nil, streamerr.Newf(streamerr.KindInvalidInput, "add magnet", "magnet URL is required")
	}
	form := url.Values{}
	form.Set("magnet", trimmedMagnet)
	form.Set("seed", "1")
	form.Set("allow_zip", "false")
	req, err := c.newRequest(ctx, http.MethodPost, "/torrents/createtorrent", form)
	if err != nil {
		return nil, err
	}

	var result torboxResponse[torboxCreateTorrentData]
	if err := c.transport.doJSON(req, "add magnet", &result); err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, c.transport.failMessage("add magnet", result.message())
	}
	log.Printf("[torbox] magnet added: torrent_id=%d hash=%s name=%s", result.Data.TorrentID, result.Data.Hash, result.Data.Name)
	return &AddMagnetResult{ID: strconv.Itoa(result.Data.TorrentID), URI: trimmedMagnet}, nil
}

// GetTorrentInfo retrieves a torrent from mylist. Every file is linked as
// "torrent_id:file_id", which UnrestrictLink resolves through requestdl.
func (c *TorboxClient) GetTorrentInfo(ctx context.Context, torrentID string) (*TorrentInfo, error) {
	trimmedID := strings.TrimSpace(torrentID)
	if trimmedID == "" {
		return nil, streamerr.Newf(streamerr.KindInvalidInput, "torrent info", "torrent ID is required")
	}
	req, err := c.newRequest(ctx, http.MethodGet, "/torrents/mylist?bypass_cache=true&id="+url.QueryEscape(trimmedID), nil)
	if err != nil {
		return nil, err
	}

	var result torboxResponse[torboxTorrent]
	if err := c.transport.doJSON(req, "torrent info", &result); err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, c.transport.failMessage("torrent info", result.message())
	}

	torrent := result.Data
	info := &TorrentInfo{
		ID:       strconv.Itoa(torrent.ID),
		Filename: torrent.Name,
		Hash:     torrent.Hash,
		Bytes:    torrent.Size,
		Status:   mapTorboxState(torrent.DownloadState, torrent.DownloadFinished),
		Files:    make([]File, 0, len(torrent.Files)),
	}
	for _, f := range torrent.Files {
		name := f.Name
		if name == "" {
			name = f.ShortName
		}
		info.Files = append(info.Files, File{
			ID:       f.ID,
			Path:     name,
			Bytes:    f.Size,
			Selected: 1, // TorBox downloads every file
			Link:     fmt.Sprintf("%d:%d", torrent.ID, f.ID),
		})
	}
	return info, nil
}

func mapTorboxState(state string, finished bool) string {
	if finished {
		return StatusDownloaded
	}
	switch s := strings.ToLower(state); {
	case s == "cached" || s == "completed" || s == "uploading" || strings.HasPrefix(s, "seeding"):
		return StatusDownloaded
	case s == "metadl" || s == "checkingresumedata" || strings.HasPrefix(s, "downloading") || strings.HasPrefix(s, "stalled"):
		return StatusDownloading
	case s == "queued" || s == "paused":
		return StatusQueued
	case s == "error" || strings.Contains(s, "failed"):
		return StatusError
	default:
		return StatusDownloading
	}
}

// SelectFiles is a no-op for TorBox since files are auto-selected.
func (c *TorboxClient) SelectFiles(ctx context.Context, torrentID string, fileIDs string) error {
	return nil
}

// UnrestrictLink resolves a "torrent_id:file_id" reference through requestdl.
func (c *TorboxClient) UnrestrictLink(ctx context.Context, link string) (*UnrestrictResult, error) {
	torrentID, fileID, ok := strings.Cut(strings.TrimSpace(link), ":")
	if !ok || torrentID == "" || fileID == "" {
		return nil, streamerr.Newf(streamerr.KindInvalidInput, "requestdl", "invalid link format %q, expected torrent_id:file_id", link)
	}
	query := url.Values{}
	query.Set("token", c.apiKey)
	query.Set("torrent_id", torrentID)
	query.Set("file_id", fileID)
	req, err := c.newRequest(ctx, http.MethodGet, "/torrents/requestdl?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var result torboxResponse[json.RawMessage]
	if err := c.transport.doJSON(req, "requestdl", &result); err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, c.transport.failMessage("requestdl", result.message())
	}

	// data is either the URL itself or an object with a "link" field.
	var downloadURL string
	if err := json.Unmarshal(result.Data, &downloadURL); err != nil {
		var obj struct {
			Link string `json:"link"`
		}
		if err := json.Unmarshal(result.Data, &obj); err == nil {
			downloadURL = obj.Link
		}
	}
	if downloadURL == "" {
		return nil, c.transport.failMessage("requestdl", "no download URL returned")
	}
	return &UnrestrictResult{ID: link, DownloadURL: downloadURL}, nil
}
