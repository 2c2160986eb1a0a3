// Package display owns the transient on-screen indicator state. At most one
// display event is live at a time: a new event replaces the current one
// immediately and restarts the expiry timer, it never stacks.
package display

import (
	"sync"
	"time"

	"github.com/clickspan/agent/internal/models"
)

const DefaultTTL = 2000 * time.Millisecond

type Manager struct {
	mu          sync.Mutex
	ttl         time.Duration
	current     *models.DisplayEvent
	expiry      *time.Timer
	generation  uint64
	subscribers map[chan models.DisplayEvent]struct{}
}

func NewManager(ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		ttl:         ttl,
		subscribers: make(map[chan models.DisplayEvent]struct{}),
	}
}

// Show replaces any live display event with event and restarts the expiry
// timer. Subscribers that are not keeping up are skipped, never blocked on.
func (m *Manager) Show(event models.DisplayEvent) {
	m.mu.Lock()
	m.current = &event
	m.generation++
	generation := m.generation
	if m.expiry != nil {
		m.expiry.Stop()
	}
	m.expiry = time.AfterFunc(m.ttl, func() {
		m.expire(generation)
	})
	for subscriber := range m.subscribers {
		select {
		case subscriber <- event:
		default:
		}
	}
	m.mu.Unlock()
}

// Clear removes the live display event immediately, if any.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = nil
	m.generation++
	if m.expiry != nil {
		m.expiry.Stop()
		m.expiry = nil
	}
}

// Current returns the live display event, or nil when none is showing.
func (m *Manager) Current() *models.DisplayEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	event := *m.current
	return &event
}

func (m *Manager) Subscribe() chan models.DisplayEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	subscriber := make(chan models.DisplayEvent, 8)
	m.subscribers[subscriber] = struct{}{}
	return subscriber
}

func (m *Manager) Unsubscribe(subscriber chan models.DisplayEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.subscribers[subscriber]; ok {
		delete(m.subscribers, subscriber)
		close(subscriber)
	}
}

// expire only clears the display if no newer Show/Clear superseded the timer.
func (m *Manager) expire(generation uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generation != generation {
		return
	}
	m.current = nil
	m.expiry = nil
}
