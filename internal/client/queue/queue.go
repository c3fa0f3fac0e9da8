// Package queue is the durable log of writes that have not been confirmed
// by the remote yet. Every state transition re-reads the entry from shared
// storage, so other tabs' changes are seen without an explicit reload.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/clock"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/models"
)

// Prefix namespace очереди в хранилище
const Prefix = "mutation:"

// Records is the storage the queue persists through.
type Records interface {
	Write(ctx context.Context, key string, value any) bool
	Read(ctx context.Context, key string) (*models.StorageRecord, bool)
	Remove(ctx context.Context, key string)
	Keys(ctx context.Context, prefix string) []string
}

// Options tune the queue.
type Options struct {
	TabID string

	// AttemptCeiling is the number of failed attempts an entry may
	// accumulate and still be retried automatically. The entry is
	// abandoned once AttemptCount exceeds it. Default 5.
	AttemptCeiling int

	StaleAfter time.Duration // StaleAfter через сколько in-flight считается брошенным
}

// Counts number of entries per status.
type Counts struct {
	Pending   int
	InFlight  int
	Failed    int
	Rejected  int // Rejected подмножество Failed: сервер отклонил изменение
	Abandoned int
}

// Total returns every entry that still needs user or sync attention.
func (c Counts) Total() int {
	return c.Pending + c.InFlight + c.Failed + c.Abandoned
}

// Queue is safe for concurrent use within a process.
type Queue struct {
	records Records
	logger  *slog.Logger
	clock   clock.Clock
	opts    Options

	mu  sync.Mutex
	seq int64

	obsMu     sync.RWMutex
	observers []func()
}

// Open loads the queue and returns in-flight entries abandoned by a dead
// process to pending.
func Open(ctx context.Context, logger *slog.Logger, records Records, clk clock.Clock, opts Options) *Queue {
	if opts.AttemptCeiling < 1 {
		opts.AttemptCeiling = 5
	}

	q := &Queue{
		records: records,
		logger:  logger,
		clock:   clk,
		opts:    opts,
	}

	for _, m := range q.load(ctx) {
		if m.Seq > q.seq {
			q.seq = m.Seq
		}
	}
	if n := q.RecoverStale(ctx); n > 0 {
		logger.Info("Recovered interrupted mutations", "count", n)
	}
	return q
}

// OnChange registers fn to be called after every change made through
// this queue.
func (q *Queue) OnChange(fn func()) {
	q.obsMu.Lock()
	q.observers = append(q.observers, fn)
	q.obsMu.Unlock()
}

// Reload notifies observers after another tab changed the namespace.
func (q *Queue) Reload(ctx context.Context) {
	q.mu.Lock()
	for _, m := range q.load(ctx) {
		if m.Seq > q.seq {
			q.seq = m.Seq
		}
	}
	q.mu.Unlock()
	q.notify()
}

// Enqueue persists m and returns its id. A missing id is generated;
// an id already in the queue is refused, so retries never duplicate.
func (q *Queue) Enqueue(ctx context.Context, m models.QueuedMutation) (string, error) {
	if !m.Kind.Valid() {
		return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidMutation, m.Kind)
	}
	if m.TargetEntity == "" {
		return "", fmt.Errorf("%w: target entity is empty", ErrInvalidMutation)
	}

	q.mu.Lock()

	if m.ID == "" {
		m.ID = uuid.New().String()
	} else if _, ok := q.get(ctx, m.ID); ok {
		q.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrDuplicateMutation, m.ID)
	}

	now := q.now()
	if m.CreatedAt == 0 {
		m.CreatedAt = now
	}
	q.seq++
	m.Seq = q.seq
	m.UpdatedAt = now
	if m.OriginTabID == "" {
		m.OriginTabID = q.opts.TabID
	}

	// Неудачная немедленная попытка уже учтена в AttemptCount
	switch {
	case m.AttemptCount > q.opts.AttemptCeiling:
		m.Status = models.StatusAbandoned
	case m.AttemptCount > 0:
		m.Status = models.StatusFailed
	default:
		m.Status = models.StatusPending
		m.LastError = ""
		m.FailureKind = models.FailureNone
	}

	ok := q.records.Write(ctx, Prefix+m.ID, m)
	q.mu.Unlock()

	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotPersisted, m.ID)
	}

	q.logger.Debug("Mutation enqueued",
		"mutation_id", m.ID, "kind", m.Kind, "entity", m.TargetEntity, "status", m.Status)
	q.notify()
	return m.ID, nil
}

// Get returns a copy of the entry.
func (q *Queue) Get(ctx context.Context, id string) (*models.QueuedMutation, error) {
	m, ok := q.get(ctx, id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return m, nil
}

// Dequeue removes an entry after the remote confirmed it.
func (q *Queue) Dequeue(ctx context.Context, id string) error {
	q.mu.Lock()
	if _, ok := q.get(ctx, id); !ok {
		q.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	q.records.Remove(ctx, Prefix+id)
	q.mu.Unlock()

	q.logger.Debug("Mutation dequeued", "mutation_id", id)
	q.notify()
	return nil
}

// Discard removes an entry on user request. In-flight entries can't be
// discarded: the attempt may still land.
func (q *Queue) Discard(ctx context.Context, id string) error {
	q.mu.Lock()
	m, ok := q.get(ctx, id)
	if !ok {
		q.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if m.Status == models.StatusInFlight {
		q.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyInFlight, id)
	}
	q.records.Remove(ctx, Prefix+id)
	q.mu.Unlock()

	q.logger.Info("Mutation discarded", "mutation_id", id, "status", m.Status)
	q.notify()
	return nil
}

// ListPending returns every queued entry in creation order.
func (q *Queue) ListPending(ctx context.Context) []models.QueuedMutation {
	return q.load(ctx)
}

// ListEligible returns pending and failed entries in creation order.
func (q *Queue) ListEligible(ctx context.Context) []models.QueuedMutation {
	all := q.load(ctx)
	out := all[:0]
	for _, m := range all {
		if m.Eligible() {
			out = append(out, m)
		}
	}
	return out
}

// HasOutstanding reports whether any entry for entity is still in the
// queue, whatever its status. A new write for that entity must be queued
// behind it instead of being sent directly.
func (q *Queue) HasOutstanding(ctx context.Context, entity string) bool {
	for _, m := range q.load(ctx) {
		if m.TargetEntity == entity {
			return true
		}
	}
	return false
}

// Counts returns the number of entries per status.
func (q *Queue) Counts(ctx context.Context) Counts {
	var c Counts
	for _, m := range q.load(ctx) {
		switch m.Status {
		case models.StatusPending:
			c.Pending++
		case models.StatusInFlight:
			c.InFlight++
		case models.StatusFailed:
			c.Failed++
			if m.Rejected() {
				c.Rejected++
			}
		case models.StatusAbandoned:
			c.Abandoned++
		}
	}
	return c
}

// MarkInFlight claims the entry for one delivery attempt. It is a
// compare-and-set: only pending or failed entries can be claimed.
func (q *Queue) MarkInFlight(ctx context.Context, id string) error {
	return q.transition(ctx, id, func(m *models.QueuedMutation) error {
		switch m.Status {
		case models.StatusInFlight:
			return ErrAlreadyInFlight
		case models.StatusPending, models.StatusFailed:
			m.Status = models.StatusInFlight
			return nil
		default:
			return ErrNotEligible
		}
	})
}

// MarkFailed records a failed attempt. The entry is abandoned once its
// attempt count exceeds AttemptCeiling.
func (q *Queue) MarkFailed(ctx context.Context, id string, cause error) error {
	kind := FailureKindOf(cause)
	msg := "unknown error"
	if cause != nil {
		msg = cause.Error()
	}

	var status models.MutationStatus
	err := q.transition(ctx, id, func(m *models.QueuedMutation) error {
		m.AttemptCount++
		m.LastError = msg
		m.FailureKind = kind
		if m.AttemptCount > q.opts.AttemptCeiling {
			m.Status = models.StatusAbandoned
		} else {
			m.Status = models.StatusFailed
		}
		status = m.Status
		return nil
	})
	if err != nil {
		return err
	}

	q.logger.Warn("Mutation attempt failed",
		"mutation_id", id, "failure", kind, "status", status, "error", msg)
	return nil
}

// Retry resets the attempt counter and error of a failed or abandoned
// entry and makes it pending again.
func (q *Queue) Retry(ctx context.Context, id string) error {
	return q.transition(ctx, id, func(m *models.QueuedMutation) error {
		if m.Status == models.StatusInFlight {
			return ErrAlreadyInFlight
		}
		m.Status = models.StatusPending
		m.AttemptCount = 0
		m.LastError = ""
		m.FailureKind = models.FailureNone
		return nil
	})
}

// Release gives back a claim that was never attempted. The entry returns
// to the status it had before the claim; no attempt is counted.
func (q *Queue) Release(ctx context.Context, id string) error {
	return q.transition(ctx, id, func(m *models.QueuedMutation) error {
		if m.Status != models.StatusInFlight {
			return ErrNotEligible
		}
		m.Status = unclaimedStatus(m)
		return nil
	})
}

// RecoverStale returns in-flight entries whose claim is older than
// StaleAfter to pending without counting an attempt.
func (q *Queue) RecoverStale(ctx context.Context) int {
	cutoff := q.now() - q.opts.StaleAfter.Milliseconds()

	recovered := 0
	for _, m := range q.load(ctx) {
		if m.Status != models.StatusInFlight || m.UpdatedAt > cutoff {
			continue
		}
		err := q.transition(ctx, m.ID, func(m *models.QueuedMutation) error {
			if m.Status != models.StatusInFlight {
				return ErrNotEligible
			}
			m.Status = unclaimedStatus(m)
			return nil
		})
		if err == nil {
			recovered++
		}
	}
	return recovered
}

// transition applies fn to the stored entry under the queue lock and
// persists the result.
func (q *Queue) transition(ctx context.Context, id string, fn func(m *models.QueuedMutation) error) error {
	q.mu.Lock()

	m, ok := q.get(ctx, id)
	if !ok {
		q.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := fn(m); err != nil {
		q.mu.Unlock()
		return fmt.Errorf("%w: %s (status %s)", err, id, m.Status)
	}

	m.UpdatedAt = q.now()
	ok = q.records.Write(ctx, Prefix+id, m)
	q.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotPersisted, id)
	}
	q.notify()
	return nil
}

func (q *Queue) get(ctx context.Context, id string) (*models.QueuedMutation, bool) {
	rec, ok := q.records.Read(ctx, Prefix+id)
	if !ok {
		return nil, false
	}

	var m models.QueuedMutation
	if err := rec.Decode(&m); err != nil || m.ID == "" {
		q.logger.Warn("Unreadable queue entry", "key", Prefix+id, "error", err)
		return nil, false
	}
	return &m, true
}

// load reads every entry and sorts them in creation order.
func (q *Queue) load(ctx context.Context) []models.QueuedMutation {
	keys := q.records.Keys(ctx, Prefix)

	out := make([]models.QueuedMutation, 0, len(keys))
	for _, key := range keys {
		m, ok := q.get(ctx, strings.TrimPrefix(key, Prefix))
		if !ok {
			continue
		}
		out = append(out, *m)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Before(&out[j]) })
	return out
}

// unclaimedStatus статус записи до захвата: pending или failed
func unclaimedStatus(m *models.QueuedMutation) models.MutationStatus {
	if m.AttemptCount > 0 {
		return models.StatusFailed
	}
	return models.StatusPending
}

func (q *Queue) now() int64 { return q.clock.Now().UnixMilli() }

func (q *Queue) notify() {
	q.obsMu.RLock()
	observers := append([]func(){}, q.observers...)
	q.obsMu.RUnlock()

	for _, fn := range observers {
		fn()
	}
}
