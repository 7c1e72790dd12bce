package debrid

import (
	"context"
	"log"
	"net/http"
	"strings"

	"streamresolver/config"
	"streamresolver/models"
)

// SearchRequest provides normalized inputs to scraper implementations.
type SearchRequest struct {
	Identity   models.ContentIdentity
	MaxResults int
}

// Scraper describes a pluggable source capable of returning torrent releases.
type Scraper interface {
	Name() string
	Search(ctx context.Context, req SearchRequest) ([]ScrapeResult, error)
}

// ScrapeResult represents the scraper-specific payload prior to normalization.
type ScrapeResult struct {
	Title     string
	Filename  string
	Magnet    string
	InfoHash  string
	FileIndex int
	SizeBytes int64
	Quality   string // declared by the source, may be empty
	Size      string // declared human-readable size, may be empty
	Seeders   int
	Tracker   string
	Source    string
}

// BuildScrapers creates scrapers for the enabled sources, in configuration order.
// Sources with an unknown type or missing required settings are skipped.
func BuildScrapers(sources []config.SourceConfig, client *http.Client) []Scraper {
	var scrapers []Scraper
	for _, src := range sources {
		if !src.Enabled {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(src.Type)) {
		case "torrentio":
			log.Printf("[aggregator] Initializing Torrentio source: %s (options: %s)", src.Name, src.Options)
			scrapers = append(scrapers, NewTorrentioScraper(client, src.URL, src.Options, src.Name))
		case "torznab":
			if src.URL == "" || src.APIKey == "" {
				log.Printf("[aggregator] Skipping torznab source %s: missing URL or API key", src.Name)
				continue
			}
			log.Printf("[aggregator] Initializing torznab source: %s at %s", src.Name, src.URL)
			scrapers = append(scrapers, NewTorznabScraper(src.URL, src.APIKey, src.Name, client))
		case "searchapi":
			if src.URL == "" {
				log.Printf("[aggregator] Skipping search source %s: missing URL", src.Name)
				continue
			}
			log.Printf("[aggregator] Initializing search source: %s at %s", src.Name, src.URL)
			scrapers = append(scrapers, NewSearchAPIScraper(src.URL, src.Name, client))
		default:
			log.Printf("[aggregator] Unknown source type: %s", src.Type)
		}
	}
	return scrapers
}
