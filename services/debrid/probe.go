package debrid

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// URLProber checks that a resolved URL answers before it is handed out.
type URLProber interface {
	Probe(ctx context.Context, rawURL string) error
}

// URLProbe issues a HEAD request, falling back to a ranged GET for hosts that
// reject HEAD. The ranged body is sniffed so obvious error pages are reported.
type URLProbe struct {
	httpClient *http.Client
	timeout    time.Duration
}

func NewURLProbe(client *http.Client, timeout time.Duration) *URLProbe {
	if client == nil {
		client = &http.Client{}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &URLProbe{httpClient: client, timeout: timeout}
}

func (p *URLProbe) Probe(ctx context.Context, rawURL string) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("head: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode < 400 {
		return nil
	}
	if resp.StatusCode != http.StatusMethodNotAllowed && resp.StatusCode != http.StatusNotImplemented && resp.StatusCode != http.StatusForbidden {
		return fmt.Errorf("head: status %d", resp.StatusCode)
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Range", "bytes=0-3071")
	resp, err = p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ranged get: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("ranged get: status %d", resp.StatusCode)
	}
	head, _ := io.ReadAll(io.LimitReader(resp.Body, 3072))
	mime := mimetype.Detect(head)
	if mime.Is("text/html") || mime.Is("application/json") {
		return fmt.Errorf("ranged get: unexpected content type %s", mime.String())
	}
	log.Printf("[probe] %s answered with %s", redactURL(rawURL), mime.String())
	return nil
}

// redactURL keeps logs free of signed query strings.
func redactURL(rawURL string) string {
	if base, _, found := strings.Cut(rawURL, "?"); found {
		return base + "?..."
	}
	return rawURL
}
