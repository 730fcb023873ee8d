// Package unread keeps per-conversation unread message counts in sync
// across devices via Redis pub/sub. Each user has a dedicated channel;
// message and read-receipt events adjust a local counter map that UI
// badges read from.
package unread

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for unread synchronization.
var (
	unreadEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_unread_events_total",
		Help: "Total unread-count events received by kind",
	}, []string{"kind"})

	unreadDecodeErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketplace_unread_decode_errors_total",
		Help: "Total unread events dropped due to decode errors",
	})
)

// Lifecycle errors.
var (
	ErrAlreadyStarted = errors.New("unread hub already started")
	ErrNotStarted     = errors.New("unread hub not started")
)

// DefaultReconnectDelay is the pause before re-subscribing after the
// pub/sub stream closes.
const DefaultReconnectDelay = 2 * time.Second

const channelPrefix = "mp:unread:"

// ChannelFor returns the pub/sub channel name for a user.
func ChannelFor(userID int64) string {
	return fmt.Sprintf("%s%d", channelPrefix, userID)
}

// Event is a single unread-count change for one conversation.
type Event struct {
	ConversationID int64 `json:"conversationId"`

	// Count is the absolute unread count when Absolute is true,
	// otherwise a signed delta.
	Count int `json:"count"`

	Absolute bool `json:"absolute,omitempty"`
}

// Options configures a Hub.
type Options struct {
	// ReconnectDelay between subscription attempts. Zero means
	// DefaultReconnectDelay.
	ReconnectDelay time.Duration

	// OnChange, if set, is invoked after every applied event with the
	// new total across all conversations. Called from the subscriber
	// goroutine; must not block.
	OnChange func(total int)
}

// Hub subscribes to a user's unread channel and maintains the local
// counter map.
type Hub struct {
	redis  *redis.Client
	userID int64
	opts   Options
	logger zerolog.Logger

	mu      sync.Mutex
	counts  map[int64]int
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewHub creates a hub for the given user. Panics on a nil Redis client.
func NewHub(redisClient *redis.Client, userID int64, opts Options) *Hub {
	if redisClient == nil {
		panic("unread: nil redis client")
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	return &Hub{
		redis:  redisClient,
		userID: userID,
		opts:   opts,
		logger: log.With().Str("component", "unread-hub").Int64("user_id", userID).Logger(),
		counts: make(map[int64]int),
	}
}

// Start subscribes to the user's channel and begins applying events.
// Returns ErrAlreadyStarted on a second call without Stop in between.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.started {
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	h.started = true
	h.cancel = cancel
	h.done = make(chan struct{})

	go h.run(runCtx)

	h.logger.Info().Str("channel", ChannelFor(h.userID)).Msg("Unread hub started")
	return nil
}

// Stop cancels the subscription and waits for the subscriber goroutine
// to exit. Returns ErrNotStarted if the hub is not running.
func (h *Hub) Stop() error {
	h.mu.Lock()
	if !h.started {
		h.mu.Unlock()
		return ErrNotStarted
	}
	cancel := h.cancel
	done := h.done
	h.started = false
	h.cancel = nil
	h.mu.Unlock()

	cancel()
	<-done

	h.logger.Info().Msg("Unread hub stopped")
	return nil
}

// run is the subscriber loop. It re-subscribes after the message stream
// closes until the context is cancelled.
func (h *Hub) run(ctx context.Context) {
	defer close(h.done)

	channel := ChannelFor(h.userID)

	for {
		sub := h.redis.Subscribe(ctx, channel)
		msgs := sub.Channel()

	receive:
		for {
			select {
			case <-ctx.Done():
				sub.Close()
				return
			case msg, ok := <-msgs:
				if !ok {
					break receive
				}
				h.handle(msg.Payload)
			}
		}

		sub.Close()
		h.logger.Warn().
			Dur("reconnect_delay", h.opts.ReconnectDelay).
			Msg("Unread subscription closed, reconnecting")

		select {
		case <-ctx.Done():
			return
		case <-time.After(h.opts.ReconnectDelay):
		}
	}
}

// handle decodes and applies a single raw event payload.
func (h *Hub) handle(payload string) {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		unreadDecodeErrorsTotal.Inc()
		h.logger.Warn().Err(err).Msg("Dropping malformed unread event")
		return
	}

	total := h.Apply(ev)

	if h.opts.OnChange != nil {
		h.opts.OnChange(total)
	}
}

// Apply merges one event into the counter map and returns the new
// total. Exposed so callers can seed state from an initial REST fetch.
func (h *Hub) Apply(ev Event) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ev.Absolute {
		unreadEventsTotal.WithLabelValues("set").Inc()
		if ev.Count <= 0 {
			delete(h.counts, ev.ConversationID)
		} else {
			h.counts[ev.ConversationID] = ev.Count
		}
	} else {
		unreadEventsTotal.WithLabelValues("delta").Inc()
		next := h.counts[ev.ConversationID] + ev.Count
		if next <= 0 {
			delete(h.counts, ev.ConversationID)
		} else {
			h.counts[ev.ConversationID] = next
		}
	}

	return h.totalLocked()
}

// Counts returns a snapshot copy of the per-conversation counters.
func (h *Hub) Counts() map[int64]int {
	h.mu.Lock()
	defer h.mu.Unlock()

	snapshot := make(map[int64]int, len(h.counts))
	for id, n := range h.counts {
		snapshot[id] = n
	}
	return snapshot
}

// Total returns the unread total across all conversations.
func (h *Hub) Total() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.totalLocked()
}

func (h *Hub) totalLocked() int {
	total := 0
	for _, n := range h.counts {
		total += n
	}
	return total
}

// Publish sends an event to a user's unread channel.
func Publish(ctx context.Context, redisClient *redis.Client, userID int64, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal unread event: %w", err)
	}
	if err := redisClient.Publish(ctx, ChannelFor(userID), payload).Err(); err != nil {
		return fmt.Errorf("publish unread event: %w", err)
	}
	return nil
}

// MarkRead publishes an absolute zero count for a conversation, clearing
// its badge on every device.
func MarkRead(ctx context.Context, redisClient *redis.Client, userID, conversationID int64) error {
	return Publish(ctx, redisClient, userID, Event{
		ConversationID: conversationID,
		Count:          0,
		Absolute:       true,
	})
}
