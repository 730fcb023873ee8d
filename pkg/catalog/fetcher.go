package catalog

import (
	"context"

	"github.com/masterhub/marketplace-client/pkg/feed"
)

// ServicesFetcher returns a feed.PageFetcher over the services endpoint.
// The page number in params is overridden per fetch; the remaining
// filters are frozen for the lifetime of the fetcher, which matches a
// feed whose dependencies reset when filters change.
func (c *Catalog) ServicesFetcher(params ListParams) feed.PageFetcher[Service] {
	return feed.PageFetcherFunc[Service](func(ctx context.Context, page int) (feed.PageData[Service], error) {
		return c.ListServices(ctx, params.WithPage(page))
	})
}

// SpecialistsFetcher returns a feed.PageFetcher over the specialists endpoint.
func (c *Catalog) SpecialistsFetcher(params ListParams) feed.PageFetcher[Specialist] {
	return feed.PageFetcherFunc[Specialist](func(ctx context.Context, page int) (feed.PageData[Specialist], error) {
		return c.ListSpecialists(ctx, params.WithPage(page))
	})
}

// TeamsFetcher returns a feed.PageFetcher over the teams endpoint.
func (c *Catalog) TeamsFetcher(params ListParams) feed.PageFetcher[Team] {
	return feed.PageFetcherFunc[Team](func(ctx context.Context, page int) (feed.PageData[Team], error) {
		return c.ListTeams(ctx, params.WithPage(page))
	})
}

// OrdersFetcher returns a feed.PageFetcher over the orders endpoint.
func (c *Catalog) OrdersFetcher(params ListParams) feed.PageFetcher[Order] {
	return feed.PageFetcherFunc[Order](func(ctx context.Context, page int) (feed.PageData[Order], error) {
		return c.ListOrders(ctx, params.WithPage(page))
	})
}
