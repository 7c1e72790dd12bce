package debrid

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"streamresolver/internal/magnet"
)

// SearchAPIScraper talks to a search module exposing GET /api/search?type=&query=.
// The query is the Stremio-style id ("tt123" or "tt123:1:2").
type SearchAPIScraper struct {
	name       string
	baseURL    string
	httpClient *http.Client
}

func NewSearchAPIScraper(baseURL, name string, client *http.Client) *SearchAPIScraper {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &SearchAPIScraper{
		name:       strings.TrimSpace(name),
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: client,
	}
}

func (s *SearchAPIScraper) Name() string {
	if s.name != "" {
		return s.name
	}
	return "searchapi"
}

type searchAPIResponse struct {
	Results []struct {
		Title      string `json:"title"`
		MagnetLink string `json:"magnetLink"`
		Quality    string `json:"quality"`
		Size       string `json:"size"`
		Filename   string `json:"filename"`
	} `json:"results"`
}

func (s *SearchAPIScraper) Search(ctx context.Context, req SearchRequest) ([]ScrapeResult, error) {
	params := url.Values{}
	params.Set("type", string(req.Identity.MediaType))
	params.Set("query", req.Identity.StremioID())
	endpoint := fmt.Sprintf("%s/api/search?%s", s.baseURL, params.Encode())

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("searchapi request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("searchapi returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload searchAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode searchapi response: %w", err)
	}

	results := make([]ScrapeResult, 0, len(payload.Results))
	for _, item := range payload.Results {
		hash, _ := magnet.ExtractInfoHash(item.MagnetLink)
		results = append(results, ScrapeResult{
			Title:     strings.TrimSpace(item.Title),
			Filename:  strings.TrimSpace(item.Filename),
			Magnet:    strings.TrimSpace(item.MagnetLink),
			InfoHash:  hash,
			FileIndex: -1,
			Quality:   strings.TrimSpace(item.Quality),
			Size:      strings.TrimSpace(item.Size),
			Source:    s.Name(),
		})
		if req.MaxResults > 0 && len(results) >= req.MaxResults {
			break
		}
	}
	log.Printf("[searchapi] %s returned %d results for %s", s.Name(), len(results), req.Identity.StremioID())
	return results, nil
}
