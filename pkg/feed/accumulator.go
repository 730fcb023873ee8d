package feed

import (
	"sync"
)

// State represents the accumulator lifecycle state.
type State int

const (
	// StateIdle is the initial state before any fetch has started.
	StateIdle State = iota

	// StateLoading is the initial page-1 load.
	StateLoading

	// StateReady means at least one page is accumulated and more may follow.
	StateReady

	// StateLoadingMore means a page beyond the first is being awaited.
	StateLoadingMore

	// StateExhausted means the server reported no further pages.
	StateExhausted
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateLoadingMore:
		return "loading_more"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// PageData is one page of a paginated list response.
type PageData[T any] struct {
	// Page is the 1-based page number this data belongs to.
	Page int

	// HasNextPage reports whether the server has more pages after this one.
	HasNextPage bool

	// TotalPages is the total page count when the server reports it (0 if unknown).
	// Only Prefetcher uses it; the accumulator relies on HasNextPage alone.
	TotalPages int

	// Items is the page content in server order.
	Items []T
}

// Options configures an Accumulator.
type Options struct {
	// ScrollGate suppresses LoadMore until a scroll gesture has been
	// observed. Short lists can report end-reached during initial layout
	// before the user ever scrolled; the gate filters those out.
	ScrollGate bool

	// OnRefresh is invoked when Refresh is called, so the owner can
	// trigger a refetch of page 1. Optional.
	OnRefresh func()
}

// Accumulator merges successive page responses into one continuous,
// de-duplicated list. Identity is determined solely by the key function;
// no two accumulated items share a key.
//
// All methods are safe for concurrent use.
type Accumulator[T any] struct {
	keyOf func(T) string
	opts  Options

	mu         sync.Mutex
	state      State
	items      []T
	seen       map[string]struct{}
	epoch      int // bumped by Refresh and DependenciesChanged
	page       int // page currently requested or awaited
	hasNext    bool
	refreshing bool
	scrolled   bool // scroll-gate latch, one-shot
	endLatch   bool // duplicate end-reached guard, cleared by ScrollBegan
}

// NewAccumulator creates an empty accumulator awaiting page 1.
// keyOf must return a stable identity for an item; it is the sole
// deduplication key.
func NewAccumulator[T any](keyOf func(T) string, opts Options) *Accumulator[T] {
	if keyOf == nil {
		panic("feed: keyOf function cannot be nil")
	}
	return &Accumulator[T]{
		keyOf:   keyOf,
		opts:    opts,
		state:   StateIdle,
		seen:    make(map[string]struct{}),
		page:    1,
		hasNext: true,
	}
}

// LoadStarted records that the initial page-1 fetch began.
// Only meaningful in StateIdle; later loads are tracked by LoadMore.
func (a *Accumulator[T]) LoadStarted() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == StateIdle {
		a.state = StateLoading
	}
}

// PageArrived merges a page response into the accumulated list.
//
// Page 1 replaces the list wholesale, which makes refresh and filter
// changes behave cleanly. Pages beyond 1 append only items whose key is
// not already present, preserving first-seen order. A response whose page
// number does not match the page currently awaited is a stale arrival
// from an invalidated request and is dropped.
//
// The page-number check cannot tell a pre-reset page-1 response from the
// one currently awaited — both are page 1. Pager covers that with its
// generation counter; callers driving the accumulator directly should
// capture Epoch before fetching and deliver through PageArrivedAt.
//
// Returns true if the page was accepted, false if it was dropped as stale.
func (a *Accumulator[T]) PageArrived(pd PageData[T]) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mergePage(pd)
}

// Epoch returns a token identifying the current pagination cycle. It
// changes whenever Refresh or DependenciesChanged invalidates in-flight
// requests.
func (a *Accumulator[T]) Epoch() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.epoch
}

// PageArrivedAt merges pd only when the epoch token is still current.
// A response fetched under an earlier epoch predates a reset or refresh
// and is dropped even when its page number matches.
func (a *Accumulator[T]) PageArrivedAt(epoch int, pd PageData[T]) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if epoch != a.epoch {
		return false
	}
	return a.mergePage(pd)
}

func (a *Accumulator[T]) mergePage(pd PageData[T]) bool {
	if pd.Page != a.page {
		return false
	}

	if pd.Page == 1 {
		// Wholesale replace. Keep the existing slice identity when both
		// old and new lists are empty to avoid churning consumers.
		if len(pd.Items) == 0 && len(a.items) == 0 {
			a.seen = make(map[string]struct{})
		} else {
			a.items = make([]T, 0, len(pd.Items))
			a.seen = make(map[string]struct{}, len(pd.Items))
			for _, item := range pd.Items {
				key := a.keyOf(item)
				if _, dup := a.seen[key]; dup {
					continue
				}
				a.seen[key] = struct{}{}
				a.items = append(a.items, item)
			}
		}
		a.refreshing = false
	} else {
		for _, item := range pd.Items {
			key := a.keyOf(item)
			if _, dup := a.seen[key]; dup {
				continue
			}
			a.seen[key] = struct{}{}
			a.items = append(a.items, item)
		}
	}

	a.hasNext = pd.HasNextPage
	if a.hasNext {
		a.state = StateReady
	} else {
		a.state = StateExhausted
	}
	return true
}

// FetchFailed records that the fetch for the given page failed, returning
// the accumulator to a state where the page can be requested again. The
// accumulator itself has no retry logic; retries belong to the query layer.
func (a *Accumulator[T]) FetchFailed(page int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if page != a.page {
		return
	}
	switch a.state {
	case StateLoading:
		a.state = StateIdle
	case StateLoadingMore:
		// Roll the requested page back so the next LoadMore targets the
		// page that was never delivered.
		a.page--
		a.state = StateReady
	}
	a.refreshing = false
}

// LoadMore requests the next page. It advances the awaited page and
// returns true only when all guards pass: a page is ready, more pages
// exist, no load is in flight, the end-reached latch is clear, and (with
// ScrollGate enabled) the user has actually scrolled.
//
// Multiple synchronous calls within one scroll gesture advance at most
// once; the latch clears on the next ScrollBegan, not when the page
// finishes loading. This avoids the double-fire defect of virtualized
// list end-reached events.
func (a *Accumulator[T]) LoadMore() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state != StateReady || !a.hasNext || a.refreshing {
		return false
	}
	if a.endLatch {
		return false
	}
	if a.opts.ScrollGate && !a.scrolled {
		return false
	}

	a.endLatch = true
	a.page++
	a.state = StateLoadingMore
	return true
}

// ScrollBegan records a user-initiated scroll gesture. It trips the
// scroll-gate and clears the end-reached latch so the next end-reached
// event can fire.
func (a *Accumulator[T]) ScrollBegan() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.scrolled = true
	a.endLatch = false
}

// Refresh restarts pagination from page 1 without discarding the
// currently visible items; they are only replaced once fresh page-1 data
// arrives, avoiding an empty-list flash. Latches are cleared and the
// optional OnRefresh callback is invoked.
func (a *Accumulator[T]) Refresh() {
	a.mu.Lock()
	if a.state == StateIdle || a.state == StateLoading {
		a.mu.Unlock()
		return
	}
	a.refreshing = true
	a.epoch++
	a.page = 1
	a.hasNext = true
	a.scrolled = false
	a.endLatch = false
	a.state = StateReady
	onRefresh := a.opts.OnRefresh
	a.mu.Unlock()

	if onRefresh != nil {
		onRefresh()
	}
}

// DependenciesChanged fully resets the accumulator: items are discarded,
// latches cleared, and pagination restarts at page 1. Call it whenever a
// watched external parameter (search text, filter set, active tab)
// changes. Any change triggers a full reset; no diffing is attempted.
func (a *Accumulator[T]) DependenciesChanged() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.items = nil
	a.seen = make(map[string]struct{})
	a.epoch++
	a.page = 1
	a.hasNext = true
	a.refreshing = false
	a.scrolled = false
	a.endLatch = false
	a.state = StateIdle
}

// Items returns the accumulated list. The returned slice must not be
// mutated by the caller.
func (a *Accumulator[T]) Items() []T {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.items
}

// Page returns the page currently requested or awaited.
func (a *Accumulator[T]) Page() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.page
}

// State returns the current lifecycle state.
func (a *Accumulator[T]) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// IsInitialLoading reports whether the very first page is being loaded.
func (a *Accumulator[T]) IsInitialLoading() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state == StateLoading
}

// IsLoadingMore reports whether a page beyond the first is being loaded.
func (a *Accumulator[T]) IsLoadingMore() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state == StateLoadingMore
}

// IsRefreshing reports whether a refresh was requested and its page-1
// data has not arrived yet.
func (a *Accumulator[T]) IsRefreshing() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.refreshing
}
