package debrid

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamresolver/config"
	"streamresolver/models"
)

func TestTorrentioScraperSearch(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		writeJSON(t, w, map[string]any{
			"streams": []map[string]any{
				{
					"name":     "Torrentio\n4k HDR",
					"title":    "Show.S02E05.2160p.WEB\n👤 42 💾 12.5 GB ⚙️ ThePirateBay",
					"infoHash": "ABCDEFABCDEFABCDEFABCDEFABCDEFABCDEFABCD",
					"fileIdx":  3,
					"sources":  []string{"tracker:udp://tracker.example:1337", "dht:abc"},
				},
				{"name": "no hash", "title": "skipped"},
			},
		})
	}))
	defer srv.Close()

	scraper := NewTorrentioScraper(srv.Client(), srv.URL, "sort=qualitysize", "Torrentio")
	identity := mustIdentity(t, models.MediaTypeSeries, "tt0903747", 2, 5)

	results, err := scraper.Search(context.Background(), SearchRequest{Identity: identity})
	require.NoError(t, err)
	assert.Equal(t, "/sort=qualitysize/stream/series/tt0903747:2:5.json", gotPath)
	require.Len(t, results, 1)

	res := results[0]
	assert.Equal(t, "abcdefabcdefabcdefabcdefabcdefabcdefabcd", res.InfoHash)
	assert.Equal(t, "Show.S02E05.2160p.WEB", res.Filename)
	assert.Equal(t, 3, res.FileIndex)
	assert.Equal(t, 42, res.Seeders)
	assert.Equal(t, "ThePirateBay", res.Tracker)
	assert.Equal(t, "2160p", res.Quality)
	assert.Equal(t, int64(12.5*1024*1024*1024), res.SizeBytes)
	assert.Contains(t, res.Magnet, "xt=urn:btih:abcdefabcdefabcdefabcdefabcdefabcdefabcd")
	assert.Contains(t, res.Magnet, "&tr=udp%3A%2F%2Ftracker.example%3A1337")
}

func TestTorrentioScraperSkipsTMDB(t *testing.T) {
	scraper := NewTorrentioScraper(nil, "http://127.0.0.1:1", "", "")
	results, err := scraper.Search(context.Background(), SearchRequest{Identity: mustIdentity(t, models.MediaTypeMovie, "tmdb:603", 0, 0)})
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, "torrentio", scraper.Name())
}

func TestTorrentioScraperHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	scraper := NewTorrentioScraper(srv.Client(), srv.URL, "", "")
	_, err := scraper.Search(context.Background(), SearchRequest{Identity: mustIdentity(t, models.MediaTypeMovie, "tt0111161", 0, 0)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

const torznabFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:torznab="http://torznab.com/schemas/2015/feed">
<channel>
  <item>
    <title>Movie.2019.1080p.BluRay</title>
    <link>https://indexer.example/dl/1.torrent</link>
    <size>2147483648</size>
    <torznab:attr name="seeders" value="17"/>
    <torznab:attr name="infohash" value="AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"/>
    <torznab:attr name="jackettindexer" value="1337x"/>
  </item>
  <item>
    <title>Movie.2019.720p</title>
    <link>magnet:?xt=urn:btih:bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb&amp;dn=Movie</link>
  </item>
  <item>
    <title>Torrent file only</title>
    <link>https://indexer.example/dl/3.torrent</link>
  </item>
</channel>
</rss>`

func TestTorznabScraperSearch(t *testing.T) {
	tests := []struct {
		name       string
		identity   models.ContentIdentity
		wantParams map[string]string
	}{
		{
			name:       "movie",
			identity:   mustIdentity(t, models.MediaTypeMovie, "tt0111161", 0, 0),
			wantParams: map[string]string{"t": "movie", "imdbid": "tt0111161", "apikey": "key"},
		},
		{
			name:       "series",
			identity:   mustIdentity(t, models.MediaTypeSeries, "tt0903747", 2, 5),
			wantParams: map[string]string{"t": "tvsearch", "imdbid": "tt0903747", "season": "2", "ep": "5"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPath string
			var gotQuery map[string][]string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				gotQuery = r.URL.Query()
				w.Header().Set("Content-Type", "application/rss+xml")
				_, _ = w.Write([]byte(torznabFeed))
			}))
			defer srv.Close()

			scraper := NewTorznabScraper(srv.URL, "key", "Jackett", srv.Client())
			results, err := scraper.Search(context.Background(), SearchRequest{Identity: tt.identity})
			require.NoError(t, err)

			assert.Equal(t, "/api/v2.0/indexers/all/results/torznab/api", gotPath)
			for k, v := range tt.wantParams {
				assert.Equal(t, []string{v}, gotQuery[k], k)
			}

			require.Len(t, results, 2)
			assert.Equal(t, testHashA, results[0].InfoHash)
			assert.Equal(t, 17, results[0].Seeders)
			assert.Equal(t, int64(2147483648), results[0].SizeBytes)
			assert.Equal(t, "1337x", results[0].Tracker)
			assert.Contains(t, results[0].Magnet, testHashA)
			assert.Equal(t, testHashB, results[1].InfoHash)
			assert.Equal(t, "Jackett", results[1].Source)
		})
	}
}

func TestTorznabScraperKeepsExplicitAPIURL(t *testing.T) {
	scraper := NewTorznabScraper("http://prowlarr.local/1/api/", "k", "", nil)
	assert.Equal(t, "http://prowlarr.local/1/api", scraper.apiURL)
	assert.Equal(t, "torznab", scraper.Name())
}

func TestSearchAPIScraperSearch(t *testing.T) {
	var gotQuery, gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/search", r.URL.Path)
		gotQuery = r.URL.Query().Get("query")
		gotType = r.URL.Query().Get("type")
		writeJSON(t, w, map[string]any{
			"results": []map[string]any{
				{"title": "Show S02E05 1080p", "magnetLink": magnetFor(testHashA), "quality": "1080p", "size": "1.4 GB", "filename": "show.s02e05.mkv"},
				{"title": "No magnet"},
			},
		})
	}))
	defer srv.Close()

	scraper := NewSearchAPIScraper(srv.URL+"/", "Module", srv.Client())
	results, err := scraper.Search(context.Background(), SearchRequest{Identity: mustIdentity(t, models.MediaTypeSeries, "tt0903747", 2, 5)})
	require.NoError(t, err)
	assert.Equal(t, "tt0903747:2:5", gotQuery)
	assert.Equal(t, "series", gotType)
	require.Len(t, results, 2)
	assert.Equal(t, testHashA, results[0].InfoHash)
	assert.Equal(t, "1.4 GB", results[0].Size)
	assert.Equal(t, "show.s02e05.mkv", results[0].Filename)
	assert.Empty(t, results[1].InfoHash)
}

func TestSearchAPIScraperMalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	}))
	defer srv.Close()

	scraper := NewSearchAPIScraper(srv.URL, "", srv.Client())
	_, err := scraper.Search(context.Background(), SearchRequest{Identity: mustIdentity(t, models.MediaTypeMovie, "tt0111161", 0, 0)})
	require.Error(t, err)
}

func TestBuildScrapers(t *testing.T) {
	sources := []config.SourceConfig{
		{Name: "Torrentio", Type: "torrentio", Enabled: true},
		{Name: "Disabled", Type: "searchapi", URL: "http://x", Enabled: false},
		{Name: "Jackett", Type: "torznab", URL: "http://jackett", Enabled: true},
		{Name: "Jackett2", Type: "Torznab", URL: "http://jackett", APIKey: "k", Enabled: true},
		{Name: "Module", Type: "searchapi", URL: "http://module", Enabled: true},
		{Name: "Weird", Type: "zilean", URL: "http://z", Enabled: true},
	}

	scrapers := BuildScrapers(sources, nil)
	var names []string
	for _, s := range scrapers {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"Torrentio", "Jackett2", "Module"}, names)
}
