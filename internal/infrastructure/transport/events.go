package transport

import (
	"log/slog"
	"sync"

	"sitebuilder/internal/domain/entity"
	"sitebuilder/internal/domain/repository"
)

// subscriberBuffer is how many events a slow watcher may lag behind
// before further events are dropped for it.
const subscriberBuffer = 32

// Hub fans stage events out to websocket watchers, keyed by task.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[chan entity.StageEvent]struct{}
	logger *slog.Logger
}

var _ repository.EventPublisher = (*Hub)(nil)

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		subs:   make(map[string]map[chan entity.StageEvent]struct{}),
		logger: logger,
	}
}

// Publish never blocks the pipeline.
func (h *Hub) Publish(ev entity.StageEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[ev.Task] {
		select {
		case ch <- ev:
		default:
			h.logger.Warn("dropping stage event for slow watcher", "task", ev.Task, "stage", ev.Stage)
		}
	}
}

// Subscribe registers a watcher of task. The returned cancel func must be
// called once; it closes the channel.
func (h *Hub) Subscribe(task string) (<-chan entity.StageEvent, func()) {
	ch := make(chan entity.StageEvent, subscriberBuffer)

	h.mu.Lock()
	if h.subs[task] == nil {
		h.subs[task] = make(map[chan entity.StageEvent]struct{})
	}
	h.subs[task][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[task], ch)
			if len(h.subs[task]) == 0 {
				delete(h.subs, task)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
}
