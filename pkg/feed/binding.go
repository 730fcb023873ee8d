package feed

// Defaults for virtualized list bindings.
const (
	// DefaultEndReachedThreshold is how far from the end (in visible
	// lengths) the end-reached event should fire.
	DefaultEndReachedThreshold = 0.5

	// DefaultScrollEventThrottle is the scroll event interval in
	// milliseconds expected by list hosts.
	DefaultScrollEventThrottle = 16
)

// ListBinding bundles the event handlers a virtualized list host needs.
// It is meant to be spread onto the host view as-is.
type ListBinding struct {
	// OnEndReached fires when the list is scrolled near its end.
	OnEndReached func()

	// OnEndReachedThreshold is the distance from the end, in visible
	// list lengths, at which OnEndReached fires.
	OnEndReachedThreshold float64

	// OnScrollBeginDrag fires when the user starts a scroll gesture.
	OnScrollBeginDrag func()

	// OnRefresh fires on pull-to-refresh.
	OnRefresh func()

	// ScrollEventThrottle is the scroll event interval in milliseconds.
	ScrollEventThrottle int
}

// Binding returns the event-handler bundle for this accumulator.
// onAdvance is invoked with the newly requested page whenever an
// end-reached event passes all LoadMore guards; the caller is expected
// to fetch that page and deliver it via PageArrived.
func (a *Accumulator[T]) Binding(onAdvance func(page int)) ListBinding {
	return ListBinding{
		OnEndReached: func() {
			if a.LoadMore() && onAdvance != nil {
				onAdvance(a.Page())
			}
		},
		OnEndReachedThreshold: DefaultEndReachedThreshold,
		OnScrollBeginDrag:     a.ScrollBegan,
		OnRefresh:             a.Refresh,
		ScrollEventThrottle:   DefaultScrollEventThrottle,
	}
}
