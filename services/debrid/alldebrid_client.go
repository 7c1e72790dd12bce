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

// AllDebridClient handles API interactions with AllDebrid service.
type AllDebridClient struct {
	apiKey    string
	baseURL   string
	agent     string
	transport *providerTransport
}

var (
	_ Provider            = (*AllDebridClient)(nil)
	_ AvailabilityChecker = (*AllDebridClient)(nil)
	_ Configurable        = (*AllDebridClient)(nil)
)

// NewAllDebridClient creates a new AllDebrid API client.
func NewAllDebridClient(apiKey string) *AllDebridClient {
	return &AllDebridClient{
		apiKey:    strings.TrimSpace(apiKey),
		baseURL:   "https://api.alldebrid.com/v4",
		agent:     "streamresolver",
		transport: newProviderTransport("alldebrid"),
	}
}

// Name returns the provider identifier.
func (c *AllDebridClient) Name() string {
	return "alldebrid"
}

func init() {
	RegisterProvider("alldebrid", func(apiKey string) Provider {
		return NewAllDebridClient(apiKey)
	})
}

// Configure accepts "baseUrl" and "agent".
func (c *AllDebridClient) Configure(cfg map[string]string) {
	if v := strings.TrimSpace(cfg["baseUrl"]); v != "" {
		c.baseURL = strings.TrimRight(v, "/")
	}
	if v := strings.TrimSpace(cfg["agent"]); v != "" {
		c.agent = v
	}
}

func (c *AllDebridClient) BatchSize() int            { return 50 }
func (c *AllDebridClient) BatchDelay() time.Duration { return 250 * time.Millisecond }

// allDebridResponse is the generic API response wrapper.
type allDebridResponse[T any] struct {
	Status string `json:"status"` // "success" or "error"
	Data   T      `json:"data,omitempty"`
	Error  *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (r allDebridResponse[T]) message() string {
	if r.Error == nil {
		return ""
	}
	if r.Error.Code != "" {
		return r.Error.Code + ": " + r.Error.Message
	}
	return r.Error.Message
}

type allDebridMagnet struct {
	Magnet string `json:"magnet,omitempty"`
	Name   string `json:"name,omitempty"`
	ID     int    `json:"id,omitempty"`
	Hash   string `json:"hash,omitempty"`
	Size   int64  `json:"size,omitempty"`
	Ready  bool   `json:"ready,omitempty"`
	Error  *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type allDebridMagnetUploadData struct {
	Magnets []allDebridMagnet `json:"magnets"`
}

type allDebridStatus struct {
	ID         int                 `json:"id"`
	Filename   string              `json:"filename"`
	Size       int64               `json:"size"`
	Hash       string              `json:"hash,omitempty"`
	Status     string              `json:"status"`
	StatusCode int                 `json:"statusCode"`
	Links      []allDebridLink     `json:"links,omitempty"`
	Files      []allDebridFileNode `json:"files,omitempty"` // v4.1 nested file tree
}

// allDebridLink is a file link in the v4 status format.
type allDebridLink struct {
	Link     string `json:"link"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// allDebridFileNode is a file or directory in the v4.1 nested tree.
type allDebridFileNode struct {
	N string              `json:"n"`           // name
	S int64               `json:"s,omitempty"` // size (for files)
	L string              `json:"l,omitempty"` // link (for files)
	E []allDebridFileNode `json:"e,omitempty"` // entries (for directories)
}

// allDebridStatusData holds either a single magnet object or an array.
type allDebridStatusData struct {
	Magnets json.RawMessage `json:"magnets"`
}

type allDebridUnlock struct {
	Link     string `json:"link"`
	Filename string `json:"filename"`
	Host     string `json:"host"`
	Filesize int64  `json:"filesize"`
	ID       string `json:"id,omitempty"`
	Delayed  int    `json:"delayed,omitempty"`
}

type allDebridInstantData struct {
	Magnets []struct {
		Magnet  string `json:"magnet"`
		Hash    string `json:"hash"`
		Instant bool   `json:"instant"`
	} `json:"magnets"`
}

// AllDebrid status codes
const (
	allDebridStatusInQueue             = 0
	allDebridStatusDownloading         = 1
	allDebridStatusCompressingMoving   = 2
	allDebridStatusUploading           = 3
	allDebridStatusReady               = 4
	allDebridStatusUploadFail          = 5
	allDebridStatusInternalErrorUnpack = 6
	allDebridStatusNotDownloaded20Min  = 7
	allDebridStatusFileTooBig          = 8
	allDebridStatusInternalError       = 9
	allDebridStatusDownloadTook72h     = 10
	allDebridStatusDeletedOnHoster     = 11
)

// newRequest builds an authorized request. form values, when present, are sent
// urlencoded; the agent parameter is always included.
func (c *AllDebridClient) newRequest(ctx context.Context, method, endpoint string, values url.Values) (*http.Request, error) {
	if c.apiKey == "" {
		return nil, streamerr.Newf(streamerr.KindNotEntitled, "request", "alldebrid API key not configured")
	}
	if values == nil {
		values = url.Values{}
	}
	values.Set("agent", c.agent)

	var (
		req *http.Request
		err error
	)
	if method == http.MethodGet {
		req, err = http.NewRequestWithContext(ctx, method, endpoint+"?"+values.Encode(), nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, strings.NewReader(values.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return nil, streamerr.New(streamerr.KindPermanentError, "request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	return req, nil
}

// CheckAvailability queries magnet/instant for the batch.
func (c *AllDebridClient) CheckAvailability(ctx context.Context, hashes []string) (map[string]bool, error) {
	if len(hashes) == 0 {
		return map[string]bool{}, nil
	}
	values := url.Values{}
	for _, h := range hashes {
		values.Add("magnets[]", h)
	}
	req, err := c.newRequest(ctx, http.MethodGet, c.baseURL+"/magnet/instant", values)
	if err != nil {
		return nil, err
	}

	var result allDebridResponse[allDebridInstantData]
	if err := c.transport.doJSON(req, "magnet instant", &result); err != nil {
		return nil, err
	}
	if result.Status != "success" {
		msg := result.message()
		if strings.Contains(strings.ToLower(msg), "disabled") || strings.Contains(strings.ToLower(msg), "deprecated") {
			return nil, fmt.Errorf("alldebrid: %s: %w", msg, ErrAvailabilityDisabled)
		}
		return nil, c.transport.failMessage("magnet instant", msg)
	}

	cached := make(map[string]bool, len(hashes))
	for _, h := range hashes {
		cached[h] = false
	}
	for _, m := range result.Data.Magnets {
		h := strings.ToLower(m.Hash)
		if _, ok := cached[h]; ok && m.Instant {
			cached[h] = true
		}
	}
	return cached, nil
}

// AddMagnet adds a magnet link to AllDebrid and returns the torrent ID.
func (c *AllDebridClient) AddMagnet(ctx context.Context, magnetURL string) (*AddMagnetResult, error) {
	trimmedMagnet := strings.TrimSpace(magnetURL)
	if trimmedMagnet == "" {
		return nil, streamerr.Newf(streamerr.KindInvalidInput, "add magnet", "magnet URL is required")
	}
	values := url.Values{}
	values.Set("magnets[]", trimmedMagnet)
	req, err := c.newRequest(ctx, http.MethodPost, c.baseURL+"/magnet/upload", values)
	if err != nil {
		return nil, err
	}

	var result allDebridResponse[allDebridMagnetUploadData]
	if err := c.transport.doJSON(req, "add magnet", &result); err != nil {
		return nil, err
	}
	if result.Status != "success" {
		return nil, c.transport.failMessage("add magnet", result.message())
	}
	if len(result.Data.Magnets) == 0 {
		return nil, c.transport.failMessage("add magnet", "no magnet data returned")
	}

	magnet := result.Data.Magnets[0]
	if magnet.Error != nil {
		return nil, c.transport.failMessage("add magnet", magnet.Error.Code+": "+magnet.Error.Message)
	}
	log.Printf("[alldebrid] magnet added: id=%d hash=%s name=%s ready=%v", magnet.ID, magnet.Hash, magnet.Name, magnet.Ready)

	return &AddMagnetResult{
		ID:  strconv.Itoa(magnet.ID),
		URI: trimmedMagnet,
	}, nil
}

// GetTorrentInfo retrieves magnet status from the v4.1 endpoint.
func (c *AllDebridClient) GetTorrentInfo(ctx context.Context, torrentID string) (*TorrentInfo, error) {
	trimmedID := strings.TrimSpace(torrentID)
	if trimmedID == "" {
		return nil, streamerr.Newf(streamerr.KindInvalidInput, "torrent info", "torrent ID is required")
	}

	values := url.Values{}
	values.Set("id", trimmedID)
	endpoint := strings.Replace(c.baseURL, "/v4", "/v4.1", 1) + "/magnet/status"
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, values)
	if err != nil {
		return nil, err
	}

	var result allDebridResponse[allDebridStatusData]
	if err := c.transport.doJSON(req, "torrent info", &result); err != nil {
		return nil, err
	}
	if result.Status != "success" {
		return nil, c.transport.failMessage("torrent info", result.message())
	}
	if len(result.Data.Magnets) == 0 {
		return nil, c.transport.fail(streamerr.KindPermanentError, "torrent info", errNoContent)
	}

	// Requests by ID return a single object; older responses return an array.
	var status allDebridStatus
	if result.Data.Magnets[0] == '{' {
		if err := json.Unmarshal(result.Data.Magnets, &status); err != nil {
			return nil, c.transport.fail(streamerr.KindTransientError, "torrent info", fmt.Errorf("decode single magnet: %w", err))
		}
	} else {
		var magnets []allDebridStatus
		if err := json.Unmarshal(result.Data.Magnets, &magnets); err != nil {
			return nil, c.transport.fail(streamerr.KindTransientError, "torrent info", fmt.Errorf("decode magnets array: %w", err))
		}
		if len(magnets) == 0 {
			return nil, c.transport.fail(streamerr.KindPermanentError, "torrent info", errNoContent)
		}
		status = magnets[0]
	}

	info := &TorrentInfo{
		ID:       strconv.Itoa(status.ID),
		Filename: status.Filename,
		Hash:     strings.ToLower(status.Hash),
		Bytes:    status.Size,
		Status:   mapAllDebridStatusCode(status.StatusCode),
	}

	if len(status.Files) > 0 {
		flattenAllDebridTree(status.Files, "", info)
	} else {
		for i, link := range status.Links {
			info.Files = append(info.Files, File{
				ID:       i + 1,
				Path:     link.Filename,
				Bytes:    link.Size,
				Selected: 1,
			})
			info.Links = append(info.Links, link.Link)
		}
	}
	return info, nil
}

// flattenAllDebridTree walks the v4.1 file tree into Files and Links.
func flattenAllDebridTree(nodes []allDebridFileNode, basePath string, info *TorrentInfo) {
	for _, node := range nodes {
		path := node.N
		if basePath != "" {
			path = basePath + "/" + node.N
		}
		if len(node.E) > 0 {
			flattenAllDebridTree(node.E, path, info)
		} else if node.L != "" {
			info.Files = append(info.Files, File{
				ID:       len(info.Files) + 1,
				Path:     path,
				Bytes:    node.S,
				Selected: 1,
			})
			info.Links = append(info.Links, node.L)
		}
	}
}

func mapAllDebridStatusCode(statusCode int) string {
	switch statusCode {
	case allDebridStatusReady:
		return StatusDownloaded
	case allDebridStatusInQueue:
		return StatusQueued
	case allDebridStatusDownloading, allDebridStatusCompressingMoving, allDebridStatusUploading:
		return StatusDownloading
	case allDebridStatusUploadFail, allDebridStatusInternalErrorUnpack,
		allDebridStatusNotDownloaded20Min, allDebridStatusFileTooBig,
		allDebridStatusInternalError, allDebridStatusDownloadTook72h,
		allDebridStatusDeletedOnHoster:
		return StatusError
	default:
		return StatusQueued
	}
}

// SelectFiles is a no-op; AllDebrid processes every file.
func (c *AllDebridClient) SelectFiles(ctx context.Context, torrentID string, fileIDs string) error {
	return nil
}

// UnrestrictLink converts an AllDebrid link to an actual download URL.
func (c *AllDebridClient) UnrestrictLink(ctx context.Context, link string) (*UnrestrictResult, error) {
	trimmedLink := strings.TrimSpace(link)
	if trimmedLink == "" {
		return nil, streamerr.Newf(streamerr.KindInvalidInput, "unlock", "link is required")
	}
	values := url.Values{}
	values.Set("link", trimmedLink)
	req, err := c.newRequest(ctx, http.MethodPost, c.baseURL+"/link/unlock", values)
	if err != nil {
		return nil, err
	}

	var result allDebridResponse[allDebridUnlock]
	if err := c.transport.doJSON(req, "unlock", &result); err != nil {
		return nil, err
	}
	if result.Status != "success" {
		return nil, c.transport.failMessage("unlock", result.message())
	}
	if result.Data.Delayed > 0 || result.Data.Link == "" {
		return nil, c.transport.fail(streamerr.KindTransientError, "unlock",
			fmt.Errorf("link is being processed (delayed id %d)", result.Data.Delayed))
	}

	return &UnrestrictResult{
		ID:          result.Data.ID,
		Filename:    result.Data.Filename,
		Filesize:    result.Data.Filesize,
		DownloadURL: result.Data.Link,
	}, nil
}
