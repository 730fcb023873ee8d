package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/masterhub/marketplace-client/internal/config"
	"github.com/masterhub/marketplace-client/pkg/client"
	"github.com/masterhub/marketplace-client/pkg/feed"
	"github.com/masterhub/marketplace-client/pkg/logging"
	"github.com/rs/zerolog"
)

// warmer pre-fetches the leading pages of popular list endpoints so the
// Redis cache is hot before users ask. Fetching through the client is
// enough; caching happens as a side effect.
type warmer struct {
	api       *client.Client
	endpoints []config.WarmEndpoint
	logger    zerolog.Logger
}

func newWarmer(api *client.Client, endpoints []config.WarmEndpoint) *warmer {
	return &warmer{
		api:       api,
		endpoints: endpoints,
		logger:    logging.ForComponent("cache-warmer"),
	}
}

// Run warms every configured endpoint. Failures are logged per endpoint
// and do not abort the rest of the run.
func (w *warmer) Run(ctx context.Context) {
	start := time.Now()

	for _, ep := range w.endpoints {
		if err := w.warmEndpoint(ctx, ep); err != nil {
			w.logger.Warn().Err(err).Str("path", ep.Path).Msg("Warm failed")
			continue
		}
	}

	w.logger.Info().
		Int("endpoints", len(w.endpoints)).
		Dur("duration", time.Since(start)).
		Msg("Cache warm complete")
}

func (w *warmer) warmEndpoint(ctx context.Context, ep config.WarmEndpoint) error {
	prefetcher := feed.NewPrefetcher(w.pageFetcher(ep.Path), feed.PrefetchConfig{
		MaxConcurrency: 3,
		Timeout:        30 * time.Second,
		MaxPages:       ep.Pages,
	})

	items, err := prefetcher.FetchAll(ctx)
	if err != nil {
		return err
	}

	w.logger.Debug().
		Str("path", ep.Path).
		Int("pages", ep.Pages).
		Int("items", len(items)).
		Msg("Warmed endpoint")
	return nil
}

// pageFetcher adapts a raw list endpoint to feed.PageFetcher without
// knowing the item type.
func (w *warmer) pageFetcher(path string) feed.PageFetcher[json.RawMessage] {
	return feed.PageFetcherFunc[json.RawMessage](func(ctx context.Context, page int) (feed.PageData[json.RawMessage], error) {
		var zero feed.PageData[json.RawMessage]

		query := url.Values{"page": []string{strconv.Itoa(page)}}
		resp, err := w.api.Get(ctx, path+"?"+query.Encode())
		if err != nil {
			return zero, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return zero, fmt.Errorf("warm %s page %d: status %d", path, page, resp.StatusCode)
		}

		var env struct {
			Data       []json.RawMessage `json:"data"`
			Pagination struct {
				Page        int  `json:"page"`
				HasNextPage bool `json:"hasNextPage"`
				TotalPages  int  `json:"totalPages,omitempty"`
			} `json:"pagination"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			return zero, fmt.Errorf("warm %s page %d: decode: %w", path, page, err)
		}

		echoed := env.Pagination.Page
		if echoed == 0 {
			echoed = page
		}

		return feed.PageData[json.RawMessage]{
			Page:        echoed,
			HasNextPage: env.Pagination.HasNextPage,
			TotalPages:  env.Pagination.TotalPages,
			Items:       env.Data,
		}, nil
	})
}
