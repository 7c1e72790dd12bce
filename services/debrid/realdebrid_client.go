package debrid

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"streamresolver/internal/streamerr"
)

// RealDebridClient handles API interactions with Real-Debrid service.
type RealDebridClient struct {
	apiKey    string
	baseURL   string
	transport *providerTransport
}

var (
	_ Provider            = (*RealDebridClient)(nil)
	_ AvailabilityChecker = (*RealDebridClient)(nil)
	_ Configurable        = (*RealDebridClient)(nil)
)

// NewRealDebridClient creates a new Real-Debrid API client.
func NewRealDebridClient(apiKey string) *RealDebridClient {
	return &RealDebridClient{
		apiKey:    strings.TrimSpace(apiKey),
		baseURL:   "https://api.real-debrid.com/rest/1.0",
		transport: newProviderTransport("realdebrid"),
	}
}

func init() {
	RegisterProvider("realdebrid", func(apiKey string) Provider {
		return NewRealDebridClient(apiKey)
	})
}

// Name returns the provider identifier.
func (c *RealDebridClient) Name() string {
	return "realdebrid"
}

// Configure accepts "baseUrl".
func (c *RealDebridClient) Configure(cfg map[string]string) {
	if v := strings.TrimSpace(cfg["baseUrl"]); v != "" {
		c.baseURL = strings.TrimRight(v, "/")
	}
}

func (c *RealDebridClient) BatchSize() int            { return 50 }
func (c *RealDebridClient) BatchDelay() time.Duration { return 500 * time.Millisecond }

func (c *RealDebridClient) newRequest(ctx context.Context, method, path string, form url.Values) (*http.Request, error) {
	if c.apiKey == "" {
		return nil, streamerr.Newf(streamerr.KindNotEntitled, path, "real-debrid API key not configured")
	}
	var req *http.Request
	var err error
	if form != nil {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, strings.NewReader(form.Encode()))
		if req != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	}
	if err != nil {
		return nil, streamerr.New(streamerr.KindPermanentError, path, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	return req, nil
}

// rdVariants is the per-hash value of instantAvailability: {"rd": [...]} when
// cached, [] or {} otherwise.
type rdVariants map[string][]json.RawMessage

// CheckAvailability queries instantAvailability for the batch. Real-Debrid has
// disabled this endpoint for most accounts; that is reported as ErrAvailabilityDisabled.
func (c *RealDebridClient) CheckAvailability(ctx context.Context, hashes []string) (map[string]bool, error) {
	if len(hashes) == 0 {
		return map[string]bool{}, nil
	}
	path := "/torrents/instantAvailability/" + strings.Join(hashes, "/")
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var raw map[string]json.RawMessage
	if err := c.transport.doJSON(req, "instant availability", &raw); err != nil {
		if isDisabledEndpoint(err) {
			return nil, fmt.Errorf("realdebrid: %w", ErrAvailabilityDisabled)
		}
		return nil, err
	}

	result := make(map[string]bool, len(hashes))
	for _, h := range hashes {
		result[h] = false
		value, ok := raw[strings.ToLower(h)]
		if !ok {
			value, ok = raw[strings.ToUpper(h)]
		}
		if !ok || len(value) == 0 || value[0] != '{' {
			continue
		}
		var variants rdVariants
		if err := json.Unmarshal(value, &variants); err != nil {
			continue
		}
		for _, v := range variants {
			if len(v) > 0 {
				result[h] = true
				break
			}
		}
	}
	return result, nil
}

func isDisabledEndpoint(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "disabled_endpoint") || strings.Contains(msg, "status 404")
}

type rdAddMagnetResponse struct {
	ID  string `json:"id"`
	URI string `json:"uri"`
}

// AddMagnet adds a magnet link to Real-Debrid and returns the torrent ID.
func (c *RealDebridClient) AddMagnet(ctx context.Context, magnetURL string) (*AddMagnetResult, error) {
	trimmedMagnet := strings.TrimSpace(magnetURL)
	if trimmedMagnet == "" {
		return nil, streamerr.Newf(streamerr.KindInvalidInput, "add magnet", "magnet URL is required")
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/torrents/addMagnet", url.Values{"magnet": {trimmedMagnet}})
	if err != nil {
		return nil, err
	}
	var result rdAddMagnetResponse
	if err := c.transport.doJSON(req, "add magnet", &result); err != nil {
		return nil, err
	}
	if result.ID == "" {
		return nil, c.transport.failMessage("add magnet", "no torrent id returned")
	}
	log.Printf("[realdebrid] magnet added: id=%s", result.ID)
	return &AddMagnetResult{ID: result.ID, URI: result.URI}, nil
}

// GetTorrentInfo retrieves detailed information about a torrent by ID.
func (c *RealDebridClient) GetTorrentInfo(ctx context.Context, torrentID string) (*TorrentInfo, error) {
	trimmedID := strings.TrimSpace(torrentID)
	if trimmedID == "" {
		return nil, streamerr.Newf(streamerr.KindInvalidInput, "torrent info", "torrent ID is required")
	}
	req, err := c.newRequest(ctx, http.MethodGet, "/torrents/info/"+url.PathEscape(trimmedID), nil)
	if err != nil {
		return nil, err
	}
	var info TorrentInfo
	if err := c.transport.doJSON(req, "torrent info", &info); err != nil {
		return nil, err
	}
	info.Status = normalizeRealDebridStatus(info.Status)
	return &info, nil
}

func normalizeRealDebridStatus(status string) string {
	switch strings.ToLower(status) {
	case "magnet_error", "error", "virus", "dead":
		return StatusError
	case "compressing", "uploading":
		return StatusDownloading
	default:
		return strings.ToLower(status)
	}
}

// SelectFiles selects files in a torrent for download.
func (c *RealDebridClient) SelectFiles(ctx context.Context, torrentID string, files string) error {
	trimmedID := strings.TrimSpace(torrentID)
	if trimmedID == "" {
		return streamerr.Newf(streamerr.KindInvalidInput, "select files", "torrent ID is required")
	}
	if files == "" {
		files = "all"
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/torrents/selectFiles/"+url.PathEscape(trimmedID), url.Values{"files": {files}})
	if err != nil {
		return err
	}
	return c.transport.doJSON(req, "select files", nil)
}

type rdUnrestrictResponse struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	MimeType string `json:"mimeType"`
	Filesize int64  `json:"filesize"`
	Link     string `json:"link"`
	Download string `json:"download"`
}

// UnrestrictLink converts a Real-Debrid /d/ link to a direct download URL.
func (c *RealDebridClient) UnrestrictLink(ctx context.Context, link string) (*UnrestrictResult, error) {
	trimmedLink := strings.TrimSpace(link)
	if trimmedLink == "" {
		return nil, streamerr.Newf(streamerr.KindInvalidInput, "unrestrict", "link is required")
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/unrestrict/link", url.Values{"link": {trimmedLink}})
	if err != nil {
		return nil, err
	}
	var result rdUnrestrictResponse
	if err := c.transport.doJSON(req, "unrestrict", &result); err != nil {
		return nil, err
	}

	// Use Download URL if available, otherwise fall back to Link
	downloadURL := result.Download
	if downloadURL == "" {
		downloadURL = result.Link
	}
	return &UnrestrictResult{
		ID:          result.ID,
		Filename:    result.Filename,
		MimeType:    result.MimeType,
		Filesize:    result.Filesize,
		DownloadURL: downloadURL,
	}, nil
}
