package debrid

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"streamresolver/models"
)

const torrentioDefaultBaseURL = "https://torrentio.strem.fun"

// TorrentioScraper queries a Stremio stream addon (torrentio or a compatible mirror).
type TorrentioScraper struct {
	name       string // User-configured name for display
	baseURL    string
	options    string // URL path options (e.g., "sort=qualitysize|qualityfilter=480p,scr,cam")
	httpClient *http.Client
}

// NewTorrentioScraper constructs a scraper with sane defaults.
// An empty baseURL falls back to the public instance. The options parameter is inserted
// between the base URL and the /stream path.
func NewTorrentioScraper(client *http.Client, baseURL, options, name string) *TorrentioScraper {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = torrentioDefaultBaseURL
	}
	return &TorrentioScraper{
		name:       strings.TrimSpace(name),
		baseURL:    baseURL,
		options:    strings.Trim(strings.TrimSpace(options), "/"),
		httpClient: client,
	}
}

func (t *TorrentioScraper) Name() string {
	if t.name != "" {
		return t.name
	}
	return "torrentio"
}

// Search fetches the addon's streams for the identity. Only IMDb ids are understood by the addon.
func (t *TorrentioScraper) Search(ctx context.Context, req SearchRequest) ([]ScrapeResult, error) {
	if req.Identity.Kind() != models.CatalogIMDB {
		log.Printf("[torrentio] skipping %s: addon only resolves IMDb ids", req.Identity)
		return nil, nil
	}

	streams, err := t.fetchStreams(ctx, req.Identity.MediaType, req.Identity.StremioID())
	if err != nil {
		return nil, err
	}

	results := make([]ScrapeResult, 0, len(streams))
	for _, stream := range streams {
		results = append(results, ScrapeResult{
			Title:     stream.rawTitle,
			Filename:  stream.titleText,
			Magnet:    buildMagnet(stream.infoHash, stream.titleText, stream.trackers),
			InfoHash:  stream.infoHash,
			FileIndex: stream.fileIdx,
			SizeBytes: stream.sizeBytes,
			Quality:   stream.resolution,
			Seeders:   stream.seeders,
			Tracker:   stream.provider,
			Source:    t.Name(),
		})
		if req.MaxResults > 0 && len(results) >= req.MaxResults {
			break
		}
	}
	log.Printf("[torrentio] %s returned %d streams", req.Identity.StremioID(), len(results))
	return results, nil
}

type torrentioResponse struct {
	Streams []struct {
		Name          string         `json:"name"`
		Title         string         `json:"title"`
		InfoHash      string         `json:"infoHash"`
		FileIdx       *int           `json:"fileIdx"`
		Size          interface{}    `json:"size"`
		Seeders       interface{}    `json:"seeders"`
		Tracker       interface{}    `json:"tracker"`
		BehaviorHints map[string]any `json:"behaviorHints"`
		Sources       []string       `json:"sources"`
	} `json:"streams"`
}

type torrentioStream struct {
	titleText  string
	infoHash   string
	fileIdx    int
	sizeBytes  int64
	seeders    int
	provider   string
	resolution string
	trackers   []string
	rawTitle   string
}

var (
	reSize     = regexp.MustCompile(`💾\s*([\d.,]+)\s*([KMGTP]?B)`)
	reSeeders  = regexp.MustCompile(`👤\s*(\d+)`)
	reProvider = regexp.MustCompile(`⚙️?\s*([^\n]+)`)
)

func (t *TorrentioScraper) streamURL(mediaType models.MediaType, id string) string {
	// Format: baseURL/[options/]stream/mediaType/id.json
	if t.options != "" {
		return fmt.Sprintf("%s/%s/stream/%s/%s.json", t.baseURL, t.options, mediaType, url.PathEscape(id))
	}
	return fmt.Sprintf("%s/stream/%s/%s.json", t.baseURL, mediaType, url.PathEscape(id))
}

func (t *TorrentioScraper) fetchStreams(ctx context.Context, mediaType models.MediaType, id string) ([]torrentioStream, error) {
	if id == "" {
		return nil, fmt.Errorf("empty torrentio id")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.streamURL(mediaType, id), nil)
	if err != nil {
		return nil, err
	}
	addBrowserHeaders(req)
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("torrentio %s returned %d: %s", id, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload torrentioResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode torrentio response: %w", err)
	}

	streams := make([]torrentioStream, 0, len(payload.Streams))
	for _, stream := range payload.Streams {
		infoHash := strings.ToLower(strings.TrimSpace(stream.InfoHash))
		if infoHash == "" {
			continue
		}

		name := strings.TrimSpace(stream.Name)
		rawTitle := strings.TrimSpace(stream.Title)

		fileIdx := -1
		if stream.FileIdx != nil {
			fileIdx = *stream.FileIdx
		}
		sizeBytes := parseSize(rawTitle)
		if sizeBytes == 0 {
			sizeBytes = parseSizeFromInterface(stream.Size)
		}
		seeders := parseInt(stream.Seeders, rawTitle)
		provider := parseProvider(rawTitle)
		if provider == "" && stream.Tracker != nil {
			provider = strings.TrimSpace(fmt.Sprint(stream.Tracker))
		}

		streams = append(streams, torrentioStream{
			titleText:  deriveTitle(rawTitle),
			infoHash:   infoHash,
			fileIdx:    fileIdx,
			sizeBytes:  sizeBytes,
			seeders:    seeders,
			provider:   provider,
			resolution: detectResolution(name, rawTitle),
			trackers:   parseTrackers(stream.Sources),
			rawTitle:   rawTitle,
		})
	}

	return streams, nil
}

func deriveTitle(raw string) string {
	first, _, _ := strings.Cut(strings.TrimSpace(raw), "\n")
	return strings.TrimSpace(first)
}

func parseSize(raw string) int64 {
	match := reSize.FindStringSubmatch(raw)
	if len(match) != 3 {
		return 0
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(match[1], ",", ""), 64)
	if err != nil {
		return 0
	}
	multipliers := map[string]float64{
		"B":  1,
		"KB": 1024,
		"MB": 1024 * 1024,
		"GB": 1024 * 1024 * 1024,
		"TB": 1024 * 1024 * 1024 * 1024,
		"PB": 1024 * 1024 * 1024 * 1024 * 1024,
	}
	if mult, exists := multipliers[strings.ToUpper(match[2])]; exists {
		return int64(value * mult)
	}
	return 0
}

func parseSizeFromInterface(src interface{}) int64 {
	switch v := src.(type) {
	case float64:
		return int64(v)
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return n
		}
		return parseSize(v)
	default:
		return 0
	}
}

func parseInt(src interface{}, fallback string) int {
	switch v := src.(type) {
	case float64:
		return int(v)
	case string:
		if val, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return val
		}
	}
	if match := reSeeders.FindStringSubmatch(fallback); len(match) == 2 {
		if val, err := strconv.Atoi(match[1]); err == nil {
			return val
		}
	}
	return 0
}

func parseProvider(raw string) string {
	match := reProvider.FindStringSubmatch(raw)
	if len(match) != 2 {
		return ""
	}
	provider := strings.TrimSpace(match[1])
	provider = strings.TrimSuffix(provider, "Multi Audio")
	return strings.TrimSpace(provider)
}

func detectResolution(name, raw string) string {
	release := strings.ToLower(name + " " + raw)
	switch {
	case strings.Contains(release, "2160p") || strings.Contains(release, "4k"):
		return "2160p"
	case strings.Contains(release, "1080p"):
		return "1080p"
	case strings.Contains(release, "720p"):
		return "720p"
	case strings.Contains(release, "480p"):
		return "480p"
	default:
		return ""
	}
}

// parseTrackers keeps the tracker:<url> entries of a stream's sources list.
func parseTrackers(sources []string) []string {
	trackers := make([]string, 0, len(sources))
	for _, src := range sources {
		if tracker, ok := strings.CutPrefix(strings.TrimSpace(src), "tracker:"); ok && tracker != "" {
			trackers = append(trackers, tracker)
		}
	}
	return trackers
}

func buildMagnet(infoHash, displayName string, trackers []string) string {
	if infoHash == "" {
		return ""
	}
	builder := strings.Builder{}
	builder.WriteString("magnet:?xt=urn:btih:")
	builder.WriteString(strings.ToLower(infoHash))
	if displayName != "" {
		builder.WriteString("&dn=")
		builder.WriteString(url.QueryEscape(displayName))
	}
	for _, tracker := range trackers {
		builder.WriteString("&tr=")
		builder.WriteString(url.QueryEscape(tracker))
	}
	return builder.String()
}

func addBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "application/json,text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")
}
