// Package connectivity tracks whether the process can reach the network and
// tells interested parties when that changes.
package connectivity

import (
	"sync"
)

// State is the read side of the connectivity flag.
type State interface {
	// Online returns the latest known state.
	Online() bool

	// Subscribe registers fn to be called once per online/offline transition.
	// The returned func removes the listener.
	Subscribe(fn func(online bool)) (unsubscribe func())
}

type listener struct {
	id int
	fn func(online bool)
}

// Monitor holds the process-wide online flag. Platform signals are fed in
// through Set; redundant signals do not notify listeners.
type Monitor struct {
	// setMu serializes transitions so listeners observe them in order.
	setMu sync.Mutex

	mu        sync.RWMutex
	online    bool
	nextID    int
	listeners []listener
}

// NewMonitor creates a Monitor with the given initial state.
func NewMonitor(online bool) *Monitor {
	return &Monitor{online: online}
}

func (m *Monitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

func (m *Monitor) Subscribe(fn func(online bool)) func() {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.listeners = append(m.listeners, listener{id: id, fn: fn})
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			for i, l := range m.listeners {
				if l.id == id {
					m.listeners = append(m.listeners[:i:i], m.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// Set records a platform connectivity signal and reports whether it caused a
// transition. Listeners run synchronously on the caller's goroutine and must
// not call Set.
func (m *Monitor) Set(online bool) bool {
	m.setMu.Lock()
	defer m.setMu.Unlock()

	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return false
	}
	m.online = online
	snapshot := make([]listener, len(m.listeners))
	copy(snapshot, m.listeners)
	m.mu.Unlock()

	for _, l := range snapshot {
		l.fn(online)
	}
	return true
}
