package feed

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// PageFetcher fetches a single page of a paginated list.
type PageFetcher[T any] interface {
	// FetchPage fetches the given 1-based page.
	FetchPage(ctx context.Context, page int) (PageData[T], error)
}

// PageFetcherFunc adapts a function to the PageFetcher interface.
type PageFetcherFunc[T any] func(ctx context.Context, page int) (PageData[T], error)

// FetchPage implements PageFetcher.
func (f PageFetcherFunc[T]) FetchPage(ctx context.Context, page int) (PageData[T], error) {
	return f(ctx, page)
}

// Pager drives an Accumulator against a PageFetcher. It guarantees a
// single in-flight fetch and discards responses that belong to an
// invalidated generation (after Reset or Refresh), which cancels stale
// work without an explicit abort signal.
type Pager[T any] struct {
	acc     *Accumulator[T]
	fetcher PageFetcher[T]
	logger  zerolog.Logger

	mu       sync.Mutex
	gen      uint64
	inFlight bool
}

// NewPager creates a pager over the given fetcher and accumulator.
func NewPager[T any](fetcher PageFetcher[T], acc *Accumulator[T]) *Pager[T] {
	if fetcher == nil {
		panic("feed: fetcher cannot be nil")
	}
	if acc == nil {
		panic("feed: accumulator cannot be nil")
	}
	return &Pager[T]{
		acc:     acc,
		fetcher: fetcher,
		logger:  log.With().Str("component", "feed-pager").Logger(),
	}
}

// Accumulator returns the accumulator this pager drives.
func (p *Pager[T]) Accumulator() *Accumulator[T] {
	return p.acc
}

// Load fetches the initial page 1. Calling it while another fetch is in
// flight is a no-op.
func (p *Pager[T]) Load(ctx context.Context) error {
	p.acc.LoadStarted()
	return p.fetch(ctx, 1)
}

// LoadMore advances to the next page if the accumulator's guards allow
// it, then fetches that page. Returns nil without fetching when the
// advance was suppressed (already loading, exhausted, gated, or latched).
func (p *Pager[T]) LoadMore(ctx context.Context) error {
	if !p.acc.LoadMore() {
		return nil
	}
	return p.fetch(ctx, p.acc.Page())
}

// Refresh restarts pagination from page 1, keeping the visible items
// until fresh data arrives.
func (p *Pager[T]) Refresh(ctx context.Context) error {
	p.acc.Refresh()
	p.bumpGeneration()
	return p.fetch(ctx, 1)
}

// Reset discards all accumulated state and reloads from page 1. Call it
// when a watched dependency (search text, filters, active tab) changed.
func (p *Pager[T]) Reset(ctx context.Context) error {
	p.acc.DependenciesChanged()
	p.bumpGeneration()
	return p.Load(ctx)
}

// Binding returns the event-handler bundle for a virtualized list host,
// wired to this pager. Fetches triggered by list events run on their own
// goroutines; failures are logged and surface through the accumulator
// state only.
func (p *Pager[T]) Binding(ctx context.Context) ListBinding {
	b := p.acc.Binding(nil)
	b.OnEndReached = func() {
		go func() {
			if err := p.LoadMore(ctx); err != nil {
				p.logger.Warn().Err(err).Msg("Load more failed")
			}
		}()
	}
	b.OnRefresh = func() {
		go func() {
			if err := p.Refresh(ctx); err != nil {
				p.logger.Warn().Err(err).Msg("Refresh failed")
			}
		}()
	}
	return b
}

// bumpGeneration invalidates any in-flight fetch.
func (p *Pager[T]) bumpGeneration() {
	p.mu.Lock()
	p.gen++
	p.inFlight = false
	p.mu.Unlock()
}

// fetch performs the page fetch and delivers the result to the
// accumulator unless the generation moved on while the request was in
// flight.
func (p *Pager[T]) fetch(ctx context.Context, page int) error {
	p.mu.Lock()
	if p.inFlight {
		p.mu.Unlock()
		return nil
	}
	p.inFlight = true
	gen := p.gen
	p.mu.Unlock()

	pd, err := p.fetcher.FetchPage(ctx, page)

	p.mu.Lock()
	stale := gen != p.gen
	if !stale {
		p.inFlight = false
	}
	p.mu.Unlock()

	if stale {
		p.logger.Debug().
			Int("page", page).
			Uint64("generation", gen).
			Msg("Dropping stale page response")
		return nil
	}

	if err != nil {
		p.acc.FetchFailed(page)
		p.logger.Warn().
			Err(err).
			Int("page", page).
			Msg("Page fetch failed")
		return fmt.Errorf("fetch page %d: %w", page, err)
	}

	if !p.acc.PageArrived(pd) {
		p.logger.Debug().
			Int("page", pd.Page).
			Msg("Accumulator dropped stale page")
	}
	return nil
}
