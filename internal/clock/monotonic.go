package clock

import "sync"

// Monotonic выдаёт метки времени в миллисекундах, которые никогда не убывают,
// даже если системные часы были переведены назад.
type Monotonic struct {
	clock Clock
	last  int64
	mu    sync.Mutex
}

// NewMonotonic создает генератор поверх заданных часов.
func NewMonotonic(c Clock) *Monotonic {
	return &Monotonic{clock: c}
}

// Stamp returns max(now, last) and remembers the result.
func (m *Monotonic) Stamp() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now().UnixMilli()
	if now < m.last {
		now = m.last
	}
	m.last = now
	return now
}

// Observe продвигает последнюю метку, если наблюдалось более позднее значение
// (например, SavedAt записи, прочитанной из хранилища).
func (m *Monotonic) Observe(ts int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ts > m.last {
		m.last = ts
	}
}

// Last возвращает последнюю выданную метку без её изменения.
func (m *Monotonic) Last() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}
