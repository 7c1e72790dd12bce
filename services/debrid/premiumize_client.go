package debrid

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"streamresolver/internal/magnet"
	"streamresolver/internal/streamerr"
)

// PremiumizeClient talks to the Premiumize API. Premiumize serves cached
// torrents through directdl without a transfer, so a magnet is its own
// torrent ID and is always reported as downloaded.
type PremiumizeClient struct {
	apiKey    string
	baseURL   string
	transport *providerTransport
}

var (
	_ Provider            = (*PremiumizeClient)(nil)
	_ AvailabilityChecker = (*PremiumizeClient)(nil)
	_ Configurable        = (*PremiumizeClient)(nil)
)

func NewPremiumizeClient(apiKey string) *PremiumizeClient {
	return &PremiumizeClient{
		apiKey:    strings.TrimSpace(apiKey),
		baseURL:   "https://www.premiumize.me/api",
		transport: newProviderTransport("premiumize"),
	}
}

func init() {
	RegisterProvider("premiumize", func(apiKey string) Provider {
		return NewPremiumizeClient(apiKey)
	})
}

func (c *PremiumizeClient) Name() string { return "premiumize" }

// Configure accepts "baseUrl".
func (c *PremiumizeClient) Configure(cfg map[string]string) {
	if v := strings.TrimSpace(cfg["baseUrl"]); v != "" {
		c.baseURL = strings.TrimRight(v, "/")
	}
}

func (c *PremiumizeClient) BatchSize() int            { return 99 }
func (c *PremiumizeClient) BatchDelay() time.Duration { return 500 * time.Millisecond }

type premiumizeCacheResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Response []bool `json:"response"`
}

type premiumizeDirectDLResponse struct {
	Status   string              `json:"status"`
	Message  string              `json:"message"`
	Filename string              `json:"filename"`
	Filesize int64               `json:"filesize"`
	Content  []premiumizeContent `json:"content"`
}

type premiumizeContent struct {
	Path       string `json:"path"`
	Size       int64  `json:"size"`
	Link       string `json:"link"`
	StreamLink string `json:"stream_link"`
}

func (c *PremiumizeClient) checkKey(op string) error {
	if c.apiKey == "" {
		return streamerr.Newf(streamerr.KindNotEntitled, op, "premiumize API key not configured")
	}
	return nil
}

// CheckAvailability queries cache/check; the response is positional.
func (c *PremiumizeClient) CheckAvailability(ctx context.Context, hashes []string) (map[string]bool, error) {
	if len(hashes) == 0 {
		return map[string]bool{}, nil
	}
	if err := c.checkKey("cache check"); err != nil {
		return nil, err
	}
	query := url.Values{}
	for _, h := range hashes {
		query.Add("items[]", h)
	}
	query.Set("apikey", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/cache/check?"+query.Encode(), nil)
	if err != nil {
		return nil, streamerr.New(streamerr.KindPermanentError, "cache check", err)
	}

	var result premiumizeCacheResponse
	if err := c.transport.doJSON(req, "cache check", &result); err != nil {
		return nil, err
	}
	if result.Status != "success" {
		return nil, c.transport.failMessage("cache check", result.Message)
	}

	cached := make(map[string]bool, len(hashes))
	for i, h := range hashes {
		cached[h] = i < len(result.Response) && result.Response[i]
	}
	return cached, nil
}

// AddMagnet returns the magnet itself as the torrent ID.
func (c *PremiumizeClient) AddMagnet(ctx context.Context, magnetURL string) (*AddMagnetResult, error) {
	trimmed := strings.TrimSpace(magnetURL)
	if trimmed == "" {
		return nil, streamerr.Newf(streamerr.KindInvalidInput, "add magnet", "magnet URL is required")
	}
	if err := c.checkKey("add magnet"); err != nil {
		return nil, err
	}
	return &AddMagnetResult{ID: trimmed, URI: trimmed}, nil
}

// GetTorrentInfo resolves the magnet through transfer/directdl.
func (c *PremiumizeClient) GetTorrentInfo(ctx context.Context, torrentID string) (*TorrentInfo, error) {
	if err := c.checkKey("directdl"); err != nil {
		return nil, err
	}
	form := url.Values{}
	form.Set("src", torrentID)
	form.Set("apikey", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transfer/directdl", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, streamerr.New(streamerr.KindPermanentError, "directdl", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var result premiumizeDirectDLResponse
	if err := c.transport.doJSON(req, "directdl", &result); err != nil {
		return nil, err
	}
	if result.Status != "success" {
		return nil, c.transport.failMessage("directdl", result.Message)
	}
	if len(result.Content) == 0 {
		return nil, c.transport.fail(streamerr.KindNotCached, "directdl", errNoContent)
	}

	hash, _ := magnet.ExtractInfoHash(torrentID)
	info := &TorrentInfo{
		ID:       torrentID,
		Filename: result.Filename,
		Hash:     hash,
		Bytes:    result.Filesize,
		Status:   StatusDownloaded,
		Files:    make([]File, 0, len(result.Content)),
	}
	if info.Filename == "" {
		info.Filename = magnet.DisplayName(torrentID)
	}
	for i, item := range result.Content {
		link := item.StreamLink
		if link == "" {
			link = item.Link
		}
		info.Files = append(info.Files, File{
			ID:       i + 1,
			Path:     item.Path,
			Bytes:    item.Size,
			Selected: 1,
			Link:     link,
		})
	}
	return info, nil
}

// SelectFiles is a no-op; directdl exposes every file.
func (c *PremiumizeClient) SelectFiles(ctx context.Context, torrentID string, fileIDs string) error {
	return nil
}

// UnrestrictLink returns directdl links unchanged; they are already direct.
func (c *PremiumizeClient) UnrestrictLink(ctx context.Context, link string) (*UnrestrictResult, error) {
	trimmed := strings.TrimSpace(link)
	if trimmed == "" {
		return nil, streamerr.Newf(streamerr.KindInvalidInput, "unrestrict", "link is required")
	}
	return &UnrestrictResult{ID: trimmed, DownloadURL: trimmed}, nil
}
