package debrid

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"streamresolver/internal/magnet"
	"streamresolver/models"
)

// TorznabScraper queries a Torznab endpoint (Jackett, Prowlarr) by IMDb id.
type TorznabScraper struct {
	name       string // User-configured name for display
	apiURL     string
	apiKey     string
	httpClient *http.Client
}

// NewTorznabScraper constructs a torznab scraper. A bare Jackett base URL is expanded to its
// aggregate "all" indexer endpoint; URLs already ending in /api are used as-is.
func NewTorznabScraper(baseURL, apiKey, name string, client *http.Client) *TorznabScraper {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	apiURL := baseURL
	if !strings.HasSuffix(baseURL, "/api") {
		apiURL = baseURL + "/api/v2.0/indexers/all/results/torznab/api"
	}
	return &TorznabScraper{
		name:       strings.TrimSpace(name),
		apiURL:     apiURL,
		apiKey:     apiKey,
		httpClient: client,
	}
}

func (j *TorznabScraper) Name() string {
	if j.name != "" {
		return j.name
	}
	return "torznab"
}

// torznabRSS represents the Torznab RSS response structure.
type torznabRSS struct {
	XMLName xml.Name       `xml:"rss"`
	Channel torznabChannel `xml:"channel"`
}

type torznabChannel struct {
	Items []torznabItem `xml:"item"`
}

type torznabItem struct {
	Title     string           `xml:"title"`
	GUID      string           `xml:"guid"`
	Link      string           `xml:"link"`
	Size      int64            `xml:"size"`
	Enclosure torznabEnclosure `xml:"enclosure"`
	Attrs     []torznabAttr    `xml:"attr"`
}

type torznabEnclosure struct {
	URL    string `xml:"url,attr"`
	Length int64  `xml:"length,attr"`
}

type torznabAttr struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

func (j *TorznabScraper) Search(ctx context.Context, req SearchRequest) ([]ScrapeResult, error) {
	identity := req.Identity
	if identity.Kind() != models.CatalogIMDB {
		log.Printf("[torznab] skipping %s: only IMDb ids are searchable", identity)
		return nil, nil
	}

	params := url.Values{}
	params.Set("apikey", j.apiKey)
	params.Set("imdbid", identity.CatalogID)
	if identity.IsSeries() {
		params.Set("t", "tvsearch")
		params.Set("season", strconv.Itoa(identity.Season))
		params.Set("ep", strconv.Itoa(identity.Episode))
	} else {
		params.Set("t", "movie")
	}

	results, err := j.fetchResults(ctx, params)
	if err != nil {
		return nil, err
	}

	if req.MaxResults > 0 && len(results) > req.MaxResults {
		results = results[:req.MaxResults]
	}
	log.Printf("[torznab] Returning %d results for %s", len(results), identity.StremioID())
	return results, nil
}

// fetchResults makes the API request and parses the Torznab XML response.
func (j *TorznabScraper) fetchResults(ctx context.Context, params url.Values) ([]ScrapeResult, error) {
	apiURL := j.apiURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := j.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("torznab request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("torznab returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return j.parseResponse(body)
}

// parseResponse turns torznab items into results. Items without an info hash are dropped since
// debrid providers cannot be fed a .torrent URL here.
func (j *TorznabScraper) parseResponse(body []byte) ([]ScrapeResult, error) {
	var rss torznabRSS
	if err := xml.Unmarshal(body, &rss); err != nil {
		return nil, fmt.Errorf("parse XML: %w", err)
	}

	var results []ScrapeResult
	for _, item := range rss.Channel.Items {
		attrs := make(map[string]string, len(item.Attrs))
		for _, attr := range item.Attrs {
			attrs[attr.Name] = attr.Value
		}

		link := ""
		for _, candidate := range []string{attrs["magneturl"], item.Link, item.GUID, item.Enclosure.URL} {
			if strings.HasPrefix(candidate, "magnet:") {
				link = candidate
				break
			}
		}

		infoHash := strings.ToLower(attrs["infohash"])
		if infoHash == "" && link != "" {
			infoHash, _ = magnet.ExtractInfoHash(link)
		}
		if !magnet.IsInfoHash(infoHash) {
			log.Printf("[torznab] Skipping result with no info hash: %s", item.Title)
			continue
		}
		if link == "" {
			link = magnet.Build(infoHash, item.Title, "")
		}

		seeders, _ := strconv.Atoi(attrs["seeders"])

		size := item.Size
		if size == 0 {
			size = item.Enclosure.Length
		}
		if size == 0 {
			size, _ = strconv.ParseInt(attrs["size"], 10, 64)
		}

		tracker := attrs["tracker"]
		if tracker == "" {
			tracker = attrs["jackettindexer"]
		}

		results = append(results, ScrapeResult{
			Title:     item.Title,
			Filename:  item.Title,
			Magnet:    link,
			InfoHash:  infoHash,
			FileIndex: -1,
			SizeBytes: size,
			Seeders:   seeders,
			Tracker:   tracker,
			Source:    j.Name(),
		})
	}

	return results, nil
}
