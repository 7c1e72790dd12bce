package streams

import (
	"context"
	"fmt"
	"log"

	"streamresolver/config"
	"streamresolver/internal/httpclient"
	"streamresolver/internal/store"
	"streamresolver/services/debrid"
)

// NewFromSettings builds the store, sources, providers and URL probe described by settings.
func NewFromSettings(ctx context.Context, settings config.Settings) (*Engine, error) {
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	sourceClient, err := httpclient.New(httpclient.Options{
		Timeout:   settings.Engine.SourceTimeout(),
		ProxyURL:  settings.Network.ProxyURL,
		UserAgent: settings.Network.UserAgent,
	})
	if err != nil {
		return nil, fmt.Errorf("source http client: %w", err)
	}

	st, err := store.Open(ctx, settings.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	scrapers := debrid.BuildScrapers(settings.Sources, sourceClient)
	providers := debrid.DefaultRegistry.Build(settings.DebridProviders)
	log.Printf("[engine] %d sources, %d providers configured", len(scrapers), len(providers))

	var prober debrid.URLProber
	if settings.Engine.ProbeURLs {
		probeClient, err := httpclient.New(httpclient.Options{
			Timeout:   settings.Engine.ProbeTimeout(),
			ProxyURL:  settings.Network.ProxyURL,
			UserAgent: settings.Network.UserAgent,
		})
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("probe http client: %w", err)
		}
		prober = debrid.NewURLProbe(probeClient, settings.Engine.ProbeTimeout())
	}

	return New(Options{
		Settings:  settings.Engine,
		Store:     st,
		Sources:   debrid.NewAggregator(scrapers, settings.Engine.SourceTimeout()),
		Providers: providers,
		Prober:    prober,
	}), nil
}
