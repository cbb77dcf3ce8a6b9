package review

import (
	"sync"

	"github.com/boardwise/movecoach/internal/domain"
)

const subscriberBuffer = 8

// progressHub fans cumulative progress snapshots out to per-game
// subscribers. Sends are non-blocking; a dropped snapshot is made up
// for by the next one because snapshots only grow.
type progressHub struct {
	mu      sync.RWMutex
	current map[string]domain.BatchProgress
	subs    map[string]map[int]chan domain.BatchProgress
	nextSub int
}

func newProgressHub() *progressHub {
	return &progressHub{
		current: make(map[string]domain.BatchProgress),
		subs:    make(map[string]map[int]chan domain.BatchProgress),
	}
}

func (h *progressHub) Publish(gameID string, p domain.BatchProgress) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.current[gameID] = p
	for _, ch := range h.subs[gameID] {
		select {
		case ch <- p:
		default:
		}
	}
}

func (h *progressHub) Current(gameID string) (domain.BatchProgress, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	p, ok := h.current[gameID]
	return p, ok
}

// Subscribe attaches a listener for one game and primes it with the
// current snapshot when there is one. The returned stop func detaches
// the listener; the channel closes when the game is cleared.
func (h *progressHub) Subscribe(gameID string) (<-chan domain.BatchProgress, func()) {
	ch := make(chan domain.BatchProgress, subscriberBuffer)

	h.mu.Lock()
	if h.subs[gameID] == nil {
		h.subs[gameID] = make(map[int]chan domain.BatchProgress)
	}
	id := h.nextSub
	h.nextSub++
	h.subs[gameID][id] = ch
	if p, ok := h.current[gameID]; ok {
		ch <- p
	}
	h.mu.Unlock()

	stop := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		m := h.subs[gameID]
		if m == nil {
			return
		}
		if c, ok := m[id]; ok {
			delete(m, id)
			close(c)
			if len(m) == 0 {
				delete(h.subs, gameID)
			}
		}
	}
	return ch, stop
}

// Clear drops the snapshot for a game and closes every subscriber
// attached to it.
func (h *progressHub) Clear(gameID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.current, gameID)
	for _, ch := range h.subs[gameID] {
		close(ch)
	}
	delete(h.subs, gameID)
}
