// Package feed implements infinite-scroll pagination for marketplace list
// endpoints (services, specialists, teams, orders).
//
// The central type is Accumulator, an explicit state machine that merges
// successive page responses into one continuous, de-duplicated list. It is
// driven by named events instead of reactive re-execution, so the full
// pagination lifecycle is testable without any view runtime:
//
//   - PageArrived: a page response was delivered by the query layer
//   - LoadMore: the list view reported that its end was reached
//   - ScrollBegan: the user started a scroll gesture
//   - Refresh: a pull-to-refresh was requested
//   - DependenciesChanged: search text, filters, or the active tab changed
//
// Pager connects an Accumulator to a PageFetcher (typically a catalog
// endpoint) and handles in-flight guarding and generation-based discarding
// of late responses. Prefetcher fetches all pages of an endpoint in
// parallel with a worker pool, used for cache warming.
//
// Example usage:
//
//	acc := feed.NewAccumulator(func(s catalog.Service) string {
//		return strconv.FormatInt(s.ID, 10)
//	}, feed.Options{ScrollGate: true})
//	pager := feed.NewPager[catalog.Service](fetcher, acc)
//	if err := pager.Load(ctx); err != nil {
//		// initial page failed
//	}
//	binding := pager.Binding(ctx)
//	// spread binding onto the virtualized list host
package feed
