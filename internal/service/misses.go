package service

import "sync"

// missCounter tracks how many callers are past a cache miss for the same key at once.
// More than one means the cache failed to absorb the burst, which coalescing should prevent.
type missCounter struct {
	mu     sync.Mutex
	active map[string]int
}

func newMissCounter() *missCounter {
	return &missCounter{active: make(map[string]int)}
}

// enter registers a miss for key. It returns the concurrent misses including this one
// and a func that ends it; extra calls to leave are no-ops.
func (m *missCounter) enter(key string) (concurrent int, leave func()) {
	m.mu.Lock()
	m.active[key]++
	concurrent = m.active[key]
	m.mu.Unlock()

	var once sync.Once
	return concurrent, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if m.active[key] <= 1 {
				delete(m.active, key)
				return
			}
			m.active[key]--
		})
	}
}
