package debrid

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamresolver/config"
	"streamresolver/internal/streamerr"
)

const (
	testHashA = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	testHashB = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func fastTransport(tr *providerTransport) {
	tr.baseDelay = time.Millisecond
}

func TestTransportRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writeJSON(t, w, map[string]string{"id": "ok"})
	}))
	defer srv.Close()

	tr := newProviderTransport("test")
	fastTransport(tr)
	req, err := http.NewRequest(http.MethodPost, srv.URL, strings.NewReader("a=b"))
	require.NoError(t, err)

	var out struct{ ID string }
	require.NoError(t, tr.doJSON(req, "op", &out))
	assert.Equal(t, "ok", out.ID)
	assert.Equal(t, int32(3), calls.Load())
}

func TestTransportExhaustedRetriesAreRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	tr := newProviderTransport("test")
	fastTransport(tr)
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	err = tr.doJSON(req, "op", nil)
	require.Error(t, err)
	assert.Equal(t, streamerr.KindRateLimited, streamerr.KindOf(err))
}

func TestTransportClassifiesStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   streamerr.Kind
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":"bad_token"}`, streamerr.KindNotEntitled},
		{"server error", http.StatusInternalServerError, "boom", streamerr.KindTransientError},
		{"active limit", http.StatusBadRequest, `{"error":"ACTIVE_LIMIT"}`, streamerr.KindDownloadLimitReached},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			tr := newProviderTransport("test")
			req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
			require.NoError(t, err)
			err = tr.doJSON(req, "op", nil)
			assert.Equal(t, tt.want, streamerr.KindOf(err))
		})
	}
}

func TestRealDebridCheckAvailability(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		assert.Equal(t, "/torrents/instantAvailability/"+testHashA+"/"+testHashB, r.URL.Path)
		_, _ = w.Write([]byte(`{"` + testHashA + `":{"rd":[{"1":{"filename":"a.mkv","filesize":1}}]},"` + testHashB + `":[]}`))
	}))
	defer srv.Close()

	c := NewRealDebridClient("key")
	c.Configure(map[string]string{"baseUrl": srv.URL})
	got, err := c.CheckAvailability(context.Background(), []string{testHashA, testHashB})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{testHashA: true, testHashB: false}, got)
}

func TestRealDebridDisabledEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"disabled_endpoint","error_code":37}`))
	}))
	defer srv.Close()

	c := NewRealDebridClient("key")
	c.Configure(map[string]string{"baseUrl": srv.URL})
	_, err := c.CheckAvailability(context.Background(), []string{testHashA})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAvailabilityDisabled))
}

func TestRealDebridResolveFlow(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/torrents/addMagnet", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.True(t, strings.HasPrefix(r.PostForm.Get("magnet"), "magnet:?"))
		writeJSON(t, w, map[string]string{"id": "T1", "uri": "https://rd/t/T1"})
	})
	mux.HandleFunc("/torrents/info/T1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{
			"id": "T1", "filename": "Movie", "hash": testHashA, "bytes": 100, "status": "downloaded",
			"files": []map[string]any{
				{"id": 1, "path": "/Movie/sample.mkv", "bytes": 10, "selected": 0},
				{"id": 2, "path": "/Movie/movie.mkv", "bytes": 90, "selected": 1},
			},
			"links": []string{"https://rd/d/ABC"},
		})
	})
	mux.HandleFunc("/torrents/selectFiles/T1", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "2", r.PostForm.Get("files"))
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/unrestrict/link", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "https://rd/d/ABC", r.PostForm.Get("link"))
		writeJSON(t, w, map[string]any{"id": "U1", "filename": "movie.mkv", "download": "https://cdn.example/movie.mkv"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx := context.Background()
	c := NewRealDebridClient("key")
	c.Configure(map[string]string{"baseUrl": srv.URL})

	added, err := c.AddMagnet(ctx, "magnet:?xt=urn:btih:"+testHashA)
	require.NoError(t, err)
	assert.Equal(t, "T1", added.ID)

	info, err := c.GetTorrentInfo(ctx, added.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDownloaded, info.Status)
	require.NoError(t, c.SelectFiles(ctx, added.ID, "2"))

	link, ok := info.LinkFor(2)
	require.True(t, ok)
	res, err := c.UnrestrictLink(ctx, link)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/movie.mkv", res.DownloadURL)
}

func TestRealDebridMissingKey(t *testing.T) {
	c := NewRealDebridClient("")
	_, err := c.AddMagnet(context.Background(), "magnet:?xt=urn:btih:"+testHashA)
	assert.Equal(t, streamerr.KindNotEntitled, streamerr.KindOf(err))
}

func TestTorboxClient(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/torrents/checkcached", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, testHashA+","+testHashB, r.URL.Query().Get("hash"))
		assert.Equal(t, "list", r.URL.Query().Get("format"))
		writeJSON(t, w, map[string]any{"success": true, "data": []map[string]any{{"hash": testHashB, "name": "x", "size": 1}}})
	})
	mux.HandleFunc("/torrents/createtorrent", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"success": true, "data": map[string]any{"torrent_id": 42, "hash": testHashB}})
	})
	mux.HandleFunc("/torrents/mylist", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "42", r.URL.Query().Get("id"))
		writeJSON(t, w, map[string]any{"success": true, "data": map[string]any{
			"id": 42, "hash": testHashB, "name": "Show", "size": 500, "download_state": "cached", "download_finished": true,
			"files": []map[string]any{{"id": 0, "name": "Show/S01E01.mkv", "size": 500}},
		}})
	})
	mux.HandleFunc("/torrents/requestdl", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "42", r.URL.Query().Get("torrent_id"))
		assert.Equal(t, "0", r.URL.Query().Get("file_id"))
		assert.Equal(t, "key", r.URL.Query().Get("token"))
		writeJSON(t, w, map[string]any{"success": true, "data": "https://tb.example/dl/42/0"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx := context.Background()
	c := NewTorboxClient("key")
	c.Configure(map[string]string{"baseUrl": srv.URL})

	cached, err := c.CheckAvailability(ctx, []string{testHashA, testHashB})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{testHashA: false, testHashB: true}, cached)

	added, err := c.AddMagnet(ctx, "magnet:?xt=urn:btih:"+testHashB)
	require.NoError(t, err)
	assert.Equal(t, "42", added.ID)

	info, err := c.GetTorrentInfo(ctx, added.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDownloaded, info.Status)
	link, ok := info.LinkFor(0)
	require.True(t, ok)
	assert.Equal(t, "42:0", link)

	res, err := c.UnrestrictLink(ctx, link)
	require.NoError(t, err)
	assert.Equal(t, "https://tb.example/dl/42/0", res.DownloadURL)
}

func TestTorboxUncachedBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"success": true, "data": map[string]any{}})
	}))
	defer srv.Close()

	c := NewTorboxClient("key")
	c.Configure(map[string]string{"baseUrl": srv.URL})
	cached, err := c.CheckAvailability(context.Background(), []string{testHashA})
	require.NoError(t, err)
	assert.False(t, cached[testHashA])
}

func TestTorboxInBandError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"success": false, "error": "ACTIVE_LIMIT", "detail": "too many active torrents"})
	}))
	defer srv.Close()

	c := NewTorboxClient("key")
	c.Configure(map[string]string{"baseUrl": srv.URL})
	_, err := c.AddMagnet(context.Background(), "magnet:?xt=urn:btih:"+testHashA)
	assert.Equal(t, streamerr.KindDownloadLimitReached, streamerr.KindOf(err))
}

func TestMapTorboxState(t *testing.T) {
	tests := []struct {
		state    string
		finished bool
		want     string
	}{
		{"downloading", false, StatusDownloading},
		{"stalled (no seeds)", false, StatusDownloading},
		{"cached", false, StatusDownloaded},
		{"queued", false, StatusQueued},
		{"error", false, StatusError},
		{"anything", true, StatusDownloaded},
	}
	for _, tt := range tests {
		if got := mapTorboxState(tt.state, tt.finished); got != tt.want {
			t.Errorf("mapTorboxState(%q, %v) = %q, want %q", tt.state, tt.finished, got, tt.want)
		}
	}
}

func TestPremiumizeClient(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/cache/check", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.URL.Query().Get("apikey"))
		assert.Equal(t, []string{testHashA, testHashB}, r.URL.Query()["items[]"])
		writeJSON(t, w, map[string]any{"status": "success", "response": []bool{true, false}})
	})
	mux.HandleFunc("/transfer/directdl", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "key", r.PostForm.Get("apikey"))
		writeJSON(t, w, map[string]any{"status": "success", "content": []map[string]any{
			{"path": "Movie/movie.mkv", "size": 2000, "link": "https://pm.example/dl", "stream_link": "https://pm.example/stream"},
		}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx := context.Background()
	c := NewPremiumizeClient("key")
	c.Configure(map[string]string{"baseUrl": srv.URL})

	cached, err := c.CheckAvailability(ctx, []string{testHashA, testHashB})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{testHashA: true, testHashB: false}, cached)

	magnetLink := "magnet:?xt=urn:btih:" + testHashA + "&dn=Movie"
	added, err := c.AddMagnet(ctx, magnetLink)
	require.NoError(t, err)
	info, err := c.GetTorrentInfo(ctx, added.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDownloaded, info.Status)
	assert.Equal(t, testHashA, info.Hash)
	link, ok := info.LinkFor(1)
	require.True(t, ok)
	assert.Equal(t, "https://pm.example/stream", link)
}

func TestPremiumizeErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"status": "error", "message": "Invalid API key."})
	}))
	defer srv.Close()

	c := NewPremiumizeClient("key")
	c.Configure(map[string]string{"baseUrl": srv.URL})
	_, err := c.CheckAvailability(context.Background(), []string{testHashA})
	assert.Equal(t, streamerr.KindNotEntitled, streamerr.KindOf(err))
}

func TestDebridLinkClient(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/seedbox/cached", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		writeJSON(t, w, map[string]any{"success": true, "value": map[string]any{testHashA: map[string]any{"name": "x"}}})
	})
	mux.HandleFunc("/seedbox/add", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, true, body["async"])
		writeJSON(t, w, map[string]any{"success": true, "value": map[string]any{"id": "dl-1", "name": "Movie"}})
	})
	mux.HandleFunc("/seedbox/list", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "dl-1", r.URL.Query().Get("ids"))
		writeJSON(t, w, map[string]any{"success": true, "value": []map[string]any{{
			"id": "dl-1", "name": "Movie", "hashString": strings.ToUpper(testHashA), "totalSize": 10, "downloadPercent": 100,
			"files": []map[string]any{{"id": "f1", "name": "movie.mkv", "size": 10, "downloadUrl": "https://dl.example/f1"}},
		}}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx := context.Background()
	c := NewDebridLinkClient("key")
	c.Configure(map[string]string{"baseUrl": srv.URL})

	cached, err := c.CheckAvailability(ctx, []string{testHashA, testHashB})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{testHashA: true, testHashB: false}, cached)

	added, err := c.AddMagnet(ctx, "magnet:?xt=urn:btih:"+testHashA)
	require.NoError(t, err)
	info, err := c.GetTorrentInfo(ctx, added.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDownloaded, info.Status)
	assert.Equal(t, testHashA, info.Hash)
	link, ok := info.LinkFor(1)
	require.True(t, ok)
	assert.Equal(t, "https://dl.example/f1", link)
}

func TestDebridLinkBadToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"success":false,"error":"badToken"}`))
	}))
	defer srv.Close()

	c := NewDebridLinkClient("key")
	c.Configure(map[string]string{"baseUrl": srv.URL})
	_, err := c.AddMagnet(context.Background(), "magnet:?xt=urn:btih:"+testHashA)
	assert.Equal(t, streamerr.KindNotEntitled, streamerr.KindOf(err))
}

func TestAllDebridClient(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v4/magnet/instant", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "streamresolver", r.URL.Query().Get("agent"))
		writeJSON(t, w, map[string]any{"status": "success", "data": map[string]any{"magnets": []map[string]any{
			{"hash": testHashA, "instant": true},
			{"hash": testHashB, "instant": false},
		}}})
	})
	mux.HandleFunc("/v4/magnet/upload", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.NotEmpty(t, r.PostForm.Get("magnets[]"))
		writeJSON(t, w, map[string]any{"status": "success", "data": map[string]any{"magnets": []map[string]any{
			{"id": 7, "hash": testHashA, "name": "Show", "ready": true},
		}}})
	})
	mux.HandleFunc("/v4.1/magnet/status", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "7", r.URL.Query().Get("id"))
		writeJSON(t, w, map[string]any{"status": "success", "data": map[string]any{"magnets": map[string]any{
			"id": 7, "filename": "Show", "hash": testHashA, "statusCode": 4,
			"files": []map[string]any{{"n": "Show", "e": []map[string]any{
				{"n": "Show.S01E01.mkv", "s": 100, "l": "https://alldebrid.example/f/1"},
				{"n": "Show.S01E02.mkv", "s": 100, "l": "https://alldebrid.example/f/2"},
			}}},
		}}})
	})
	mux.HandleFunc("/v4/link/unlock", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "https://alldebrid.example/f/2", r.PostForm.Get("link"))
		writeJSON(t, w, map[string]any{"status": "success", "data": map[string]any{"link": "https://cdn.example/2.mkv", "filename": "Show.S01E02.mkv"}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx := context.Background()
	c := NewAllDebridClient("key")
	c.Configure(map[string]string{"baseUrl": srv.URL + "/v4"})

	cached, err := c.CheckAvailability(ctx, []string{testHashA, testHashB})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{testHashA: true, testHashB: false}, cached)

	added, err := c.AddMagnet(ctx, "magnet:?xt=urn:btih:"+testHashA)
	require.NoError(t, err)
	info, err := c.GetTorrentInfo(ctx, added.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDownloaded, info.Status)
	require.Len(t, info.Files, 2)
	assert.Equal(t, "Show/Show.S01E02.mkv", info.Files[1].Path)

	link, ok := info.LinkFor(2)
	require.True(t, ok)
	res, err := c.UnrestrictLink(ctx, link)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/2.mkv", res.DownloadURL)
}

func TestAllDebridInstantDisabled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"status": "error", "error": map[string]string{"code": "MAGNET_INSTANT_DISABLED", "message": "This endpoint is disabled"}})
	}))
	defer srv.Close()

	c := NewAllDebridClient("key")
	c.Configure(map[string]string{"baseUrl": srv.URL + "/v4"})
	_, err := c.CheckAvailability(context.Background(), []string{testHashA})
	assert.True(t, errors.Is(err, ErrAvailabilityDisabled))
}

func TestRegistryBuild(t *testing.T) {
	r := NewRegistry()
	r.Register("RealDebrid", func(apiKey string) Provider { return NewRealDebridClient(apiKey) })
	r.Register("torbox", func(apiKey string) Provider { return NewTorboxClient(apiKey) })

	providers := r.Build(settingsFor(
		[3]string{"torbox", "k1", "on"},
		[3]string{"realdebrid", "", "on"},
		[3]string{"unknown", "k3", "on"},
		[3]string{"realdebrid", "k4", "on"},
		[3]string{"torbox", "k5", "off"},
	))
	require.Len(t, providers, 2)
	assert.Equal(t, "torbox", providers[0].Name())
	assert.Equal(t, "realdebrid", providers[1].Name())
	assert.Equal(t, []string{"realdebrid", "torbox"}, r.List())
	assert.True(t, DefaultRegistry.IsRegistered("premiumize"))
	assert.True(t, DefaultRegistry.IsRegistered("debridlink"))
	assert.True(t, DefaultRegistry.IsRegistered("alldebrid"))
}

func TestLinkForPositional(t *testing.T) {
	info := &TorrentInfo{
		Files: []File{
			{ID: 1, Selected: 0},
			{ID: 2, Selected: 1},
			{ID: 3, Selected: 1},
		},
		Links: []string{"l2", "l3"},
	}
	link, ok := info.LinkFor(3)
	require.True(t, ok)
	assert.Equal(t, "l3", link)
	_, ok = info.LinkFor(1)
	assert.False(t, ok)
}

// settingsFor builds provider settings from {provider, apiKey, on|off} triples.
func settingsFor(entries ...[3]string) []config.DebridProviderSettings {
	out := make([]config.DebridProviderSettings, 0, len(entries))
	for _, e := range entries {
		out = append(out, config.DebridProviderSettings{
			Name:     e[0],
			Provider: e[0],
			APIKey:   e[1],
			Enabled:  e[2] == "on",
		})
	}
	return out
}
