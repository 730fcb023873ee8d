package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// PrefetchConfig holds prefetcher configuration.
type PrefetchConfig struct {
	// MaxConcurrency is the maximum number of parallel page requests.
	MaxConcurrency int
	// Timeout per page fetch.
	Timeout time.Duration
	// MaxPages caps how many pages are fetched when the server does not
	// report a total page count.
	MaxPages int
}

// DefaultPrefetchConfig returns safe defaults for prefetching.
func DefaultPrefetchConfig() PrefetchConfig {
	return PrefetchConfig{
		MaxConcurrency: 5,
		Timeout:        15 * time.Second,
		MaxPages:       50,
	}
}

// Prefetcher fetches every page of a paginated endpoint, in parallel
// when the server reports its total page count. The feed proxy uses it
// to warm the response cache for popular list endpoints; consumers that
// need incremental accumulation should use Pager instead.
type Prefetcher[T any] struct {
	fetcher PageFetcher[T]
	config  PrefetchConfig
}

// NewPrefetcher creates a prefetcher over the given page fetcher.
func NewPrefetcher[T any](fetcher PageFetcher[T], config PrefetchConfig) *Prefetcher[T] {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 5
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}
	if config.MaxPages <= 0 {
		config.MaxPages = 50
	}
	return &Prefetcher[T]{
		fetcher: fetcher,
		config:  config,
	}
}

// FetchAll fetches all pages and returns the concatenated items in page
// order. Failed pages beyond the first are skipped; the first failure is
// reported alongside the partial result.
func (pf *Prefetcher[T]) FetchAll(ctx context.Context) ([]T, error) {
	start := time.Now()

	first, err := pf.fetcher.FetchPage(ctx, 1)
	if err != nil {
		return nil, fmt.Errorf("fetch first page: %w", err)
	}

	if !first.HasNextPage {
		log.Debug().
			Int("pages", 1).
			Dur("duration", time.Since(start)).
			Msg("Prefetch complete (single page)")
		return first.Items, nil
	}

	if first.TotalPages > 1 {
		return pf.fetchParallel(ctx, first, start)
	}
	return pf.fetchSequential(ctx, first, start)
}

// fetchParallel distributes pages 2..TotalPages across a worker pool.
func (pf *Prefetcher[T]) fetchParallel(ctx context.Context, first PageData[T], start time.Time) ([]T, error) {
	totalPages := first.TotalPages
	if totalPages > pf.config.MaxPages {
		totalPages = pf.config.MaxPages
	}

	pages := make([][]T, totalPages+1)
	pages[1] = first.Items

	pageQueue := make(chan int, totalPages)
	errs := make(chan error, pf.config.MaxConcurrency)

	for page := 2; page <= totalPages; page++ {
		pageQueue <- page
	}
	close(pageQueue)

	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < pf.config.MaxConcurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for page := range pageQueue {
				select {
				case <-ctx.Done():
					return
				default:
				}

				pageCtx, cancel := context.WithTimeout(ctx, pf.config.Timeout)
				pd, err := pf.fetcher.FetchPage(pageCtx, page)
				cancel()

				if err != nil {
					log.Warn().
						Err(err).
						Int("page", page).
						Msg("Prefetch page failed")
					select {
					case errs <- err:
					default:
					}
					continue
				}

				mu.Lock()
				pages[page] = pd.Items
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	close(errs)

	var items []T
	for _, pageItems := range pages[1:] {
		items = append(items, pageItems...)
	}

	log.Debug().
		Int("pages", totalPages).
		Int("items", len(items)).
		Dur("duration", time.Since(start)).
		Msg("Prefetch complete")

	if err := <-errs; err != nil {
		return items, fmt.Errorf("prefetch (partial data): %w", err)
	}
	return items, nil
}

// fetchSequential walks pages by HasNextPage when no total is reported.
func (pf *Prefetcher[T]) fetchSequential(ctx context.Context, first PageData[T], start time.Time) ([]T, error) {
	items := first.Items
	page := 1
	hasNext := first.HasNextPage

	for hasNext && page < pf.config.MaxPages {
		page++

		pageCtx, cancel := context.WithTimeout(ctx, pf.config.Timeout)
		pd, err := pf.fetcher.FetchPage(pageCtx, page)
		cancel()

		if err != nil {
			return items, fmt.Errorf("fetch page %d (partial data): %w", page, err)
		}

		items = append(items, pd.Items...)
		hasNext = pd.HasNextPage
	}

	log.Debug().
		Int("pages", page).
		Int("items", len(items)).
		Dur("duration", time.Since(start)).
		Msg("Prefetch complete")

	return items, nil
}
