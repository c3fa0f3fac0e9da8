// Package connectivity tracks whether the remote collaborator is reachable.
// The state is only a hint: sync still classifies real delivery failures.
package connectivity

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/clock"
)

//go:generate moq -out pinger_mock.go . Pinger

// Pinger проверяет доступность сервера
type Pinger interface {
	Ping(ctx context.Context) error
}

// Monitor хранит текущее состояние сети и уведомляет о переходах
type Monitor struct {
	logger   *slog.Logger
	pinger   Pinger
	clk      clock.Clock
	subs     map[int]chan bool
	interval time.Duration
	timeout  time.Duration
	nextID   int
	mu       sync.RWMutex
	online   bool
}

// NewMonitor создает монитор с начальным состоянием online
func NewMonitor(logger *slog.Logger, pinger Pinger, clk clock.Clock, interval time.Duration, online bool) *Monitor {
	return &Monitor{
		logger:   logger,
		pinger:   pinger,
		clk:      clk,
		interval: interval,
		timeout:  5 * time.Second,
		online:   online,
		subs:     make(map[int]chan bool),
	}
}

// IsOnline возвращает последнее известное состояние
func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

// Set records a new state. Subscribers are notified only on transitions.
func (m *Monitor) Set(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	subs := make([]chan bool, 0, len(m.subs))
	for _, ch := range m.subs {
		subs = append(subs, ch)
	}
	m.mu.Unlock()

	m.logger.Info("Connectivity changed", "online", online)

	for _, ch := range subs {
		// Оставляем в канале только последнее состояние
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- online:
		default:
		}
	}
}

// Subscribe returns a channel receiving the new state after each transition
// and a function that cancels the subscription.
func (m *Monitor) Subscribe() (<-chan bool, func()) {
	ch := make(chan bool, 1)

	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = ch
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
		})
	}
}

// Check probes the server once and records the result.
func (m *Monitor) Check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	err := m.pinger.Ping(ctx)
	if err != nil {
		m.logger.Debug("Ping failed", "error", err)
	}
	m.Set(err == nil)
	return err == nil
}

// Run проверяет сервер с интервалом до отмены контекста
func (m *Monitor) Run(ctx context.Context) error {
	if m.interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	m.Check(ctx)

	ticker := m.clk.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}
