package queue

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/client/storage/memory"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/client/storage/sqlite"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/client/tiered"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/clock"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/models"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type rejectedErr struct{}

func (rejectedErr) Error() string { return "title is required" }
func (rejectedErr) FailureKind() models.FailureKind { return models.FailureRejected }

func newTestQueue(t *testing.T, opts Options) (*Queue, *tiered.Adapter, *clock.FakeClock) {
	t.Helper()
	fake := clock.NewFake(epoch)
	adapter := tiered.New(setupTestLogger(), tiered.Tiers{Fast: memory.New(), Durable: memory.New()}, clock.NewMonotonic(fake), 0.9)
	t.Cleanup(func() { _ = adapter.Close() })

	if opts.TabID == "" {
		opts.TabID = "tab-1"
	}
	return Open(context.Background(), setupTestLogger(), adapter, fake, opts), adapter, fake
}

func update(entity string, payload string) models.QueuedMutation {
	return models.QueuedMutation{
		Kind:         models.MutationUpdate,
		TargetEntity: entity,
		Payload:      json.RawMessage(payload),
	}
}

func TestEnqueue(t *testing.T) {
	ctx := context.Background()
	q, _, _ := newTestQueue(t, Options{AttemptCeiling: 3})

	id, err := q.Enqueue(ctx, update("task:1", `{"title":"a"}`))
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	m, err := q.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, m.Status)
	assert.Equal(t, epoch.UnixMilli(), m.CreatedAt)
	assert.Equal(t, int64(1), m.Seq)
	assert.Equal(t, "tab-1", m.OriginTabID)
	assert.Equal(t, 0, m.AttemptCount)
	assert.Empty(t, m.LastError)
}

func TestEnqueue_KeepsSuppliedIDAndRefusesDuplicate(t *testing.T) {
	ctx := context.Background()
	q, _, _ := newTestQueue(t, Options{})

	m := update("task:1", `{}`)
	m.ID = "fixed-id"

	id, err := q.Enqueue(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, "fixed-id", id)

	_, err = q.Enqueue(ctx, m)
	assert.ErrorIs(t, err, ErrDuplicateMutation)
	assert.Len(t, q.ListPending(ctx), 1)
}

func TestEnqueue_Invalid(t *testing.T) {
	ctx := context.Background()
	q, _, _ := newTestQueue(t, Options{})

	tests := []struct {
		name string
		m    models.QueuedMutation
	}{
		{"unknown kind", models.QueuedMutation{Kind: "upsert", TargetEntity: "task:1"}},
		{"no entity", models.QueuedMutation{Kind: models.MutationCreate}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := q.Enqueue(ctx, tt.m)
			assert.ErrorIs(t, err, ErrInvalidMutation)
		})
	}
}

func TestEnqueue_WithFailedAttempt(t *testing.T) {
	ctx := context.Background()
	q, _, _ := newTestQueue(t, Options{AttemptCeiling: 5})

	m := update("task:1", `{}`)
	m.AttemptCount = 1
	m.LastError = "connection refused"
	m.FailureKind = models.FailureTransport

	id, err := q.Enqueue(ctx, m)
	require.NoError(t, err)

	got, err := q.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
	assert.Equal(t, "connection refused", got.LastError)
	assert.Len(t, q.ListEligible(ctx), 1)
}

func TestListPending_CreationOrder(t *testing.T) {
	ctx := context.Background()
	q, _, fake := newTestQueue(t, Options{})

	var ids []string
	for _, entity := range []string{"task:2", "task:1", "task:2"} {
		// одинаковый CreatedAt: порядок задаёт Seq
		id, err := q.Enqueue(ctx, update(entity, `{}`))
		require.NoError(t, err)
		ids = append(ids, id)
	}
	fake.Advance(time.Second)
	id, err := q.Enqueue(ctx, update("task:3", `{}`))
	require.NoError(t, err)
	ids = append(ids, id)

	var got []string
	for _, m := range q.ListPending(ctx) {
		got = append(got, m.ID)
	}
	assert.Equal(t, ids, got)
}

func TestStateMachine(t *testing.T) {
	ctx := context.Background()
	q, _, _ := newTestQueue(t, Options{AttemptCeiling: 1})

	id, err := q.Enqueue(ctx, update("task:1", `{}`))
	require.NoError(t, err)

	require.NoError(t, q.MarkInFlight(ctx, id))
	assert.ErrorIs(t, q.MarkInFlight(ctx, id), ErrAlreadyInFlight)
	assert.Empty(t, q.ListEligible(ctx), "in-flight entries are not eligible")
	assert.ErrorIs(t, q.Discard(ctx, id), ErrAlreadyInFlight)

	require.NoError(t, q.MarkFailed(ctx, id, errors.New("timeout")))
	m, err := q.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, m.Status)
	assert.Equal(t, 1, m.AttemptCount)
	assert.Equal(t, "timeout", m.LastError)
	assert.Equal(t, models.FailureTransport, m.FailureKind)

	// Второй провал превышает потолок
	require.NoError(t, q.MarkInFlight(ctx, id))
	require.NoError(t, q.MarkFailed(ctx, id, rejectedErr{}))
	m, err = q.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAbandoned, m.Status)
	assert.Equal(t, models.FailureRejected, m.FailureKind)
	assert.ErrorIs(t, q.MarkInFlight(ctx, id), ErrNotEligible)
	assert.Empty(t, q.ListEligible(ctx))

	// Retry сбрасывает счётчик
	require.NoError(t, q.Retry(ctx, id))
	m, err = q.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, m.Status)
	assert.Equal(t, 0, m.AttemptCount)
	assert.Empty(t, m.LastError)

	require.NoError(t, q.MarkInFlight(ctx, id))
	require.NoError(t, q.Dequeue(ctx, id))
	_, err = q.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, q.Dequeue(ctx, id), ErrNotFound)
}

// Запись остаётся в автоматических повторах, пока число неудач не превысит потолок
func TestAttemptCeiling(t *testing.T) {
	tests := []struct {
		name     string
		ceiling  int
		failures int
		want     models.MutationStatus
	}{
		{name: "below ceiling", ceiling: 3, failures: 2, want: models.StatusFailed},
		{name: "at ceiling", ceiling: 3, failures: 3, want: models.StatusFailed},
		{name: "past ceiling", ceiling: 3, failures: 4, want: models.StatusAbandoned},
		{name: "default ceiling reached", ceiling: 0, failures: 5, want: models.StatusFailed},
		{name: "default ceiling exceeded", ceiling: 0, failures: 6, want: models.StatusAbandoned},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			q, _, _ := newTestQueue(t, Options{AttemptCeiling: tt.ceiling})

			id, err := q.Enqueue(ctx, update("task:1", `{}`))
			require.NoError(t, err)
			for i := 0; i < tt.failures; i++ {
				require.NoError(t, q.MarkInFlight(ctx, id))
				require.NoError(t, q.MarkFailed(ctx, id, errors.New("timeout")))
			}

			m, err := q.Get(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Status)
			assert.Equal(t, tt.failures, m.AttemptCount)

			// Enqueue с уже учтёнными попытками применяет то же правило
			pre := update("task:2", `{}`)
			pre.AttemptCount = tt.failures
			pre.LastError = "timeout"
			preID, err := q.Enqueue(ctx, pre)
			require.NoError(t, err)
			got, err := q.Get(ctx, preID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Status)
		})
	}
}

func TestMarkInFlight_Concurrent(t *testing.T) {
	ctx := context.Background()
	q, _, _ := newTestQueue(t, Options{})

	id, err := q.Enqueue(ctx, update("task:1", `{}`))
	require.NoError(t, err)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		claimed int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if q.MarkInFlight(ctx, id) == nil {
				mu.Lock()
				claimed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, claimed)
}

func TestCounts(t *testing.T) {
	ctx := context.Background()
	q, _, _ := newTestQueue(t, Options{AttemptCeiling: 3})

	ids := make([]string, 4)
	for i := range ids {
		id, err := q.Enqueue(ctx, update("task:1", `{}`))
		require.NoError(t, err)
		ids[i] = id
	}

	require.NoError(t, q.MarkInFlight(ctx, ids[1]))
	require.NoError(t, q.MarkInFlight(ctx, ids[2]))
	require.NoError(t, q.MarkFailed(ctx, ids[2], rejectedErr{}))
	require.NoError(t, q.MarkInFlight(ctx, ids[3]))
	require.NoError(t, q.MarkFailed(ctx, ids[3], errors.New("offline")))

	c := q.Counts(ctx)
	assert.Equal(t, Counts{Pending: 1, InFlight: 1, Failed: 2, Rejected: 1}, c)
	assert.Equal(t, 4, c.Total())
}

func TestHasOutstanding(t *testing.T) {
	ctx := context.Background()
	q, _, _ := newTestQueue(t, Options{AttemptCeiling: 1})

	assert.False(t, q.HasOutstanding(ctx, "task:1"))

	id, err := q.Enqueue(ctx, update("task:1", `{}`))
	require.NoError(t, err)
	assert.True(t, q.HasOutstanding(ctx, "task:1"))
	assert.False(t, q.HasOutstanding(ctx, "task:2"))

	// Брошенная запись тоже держит сущность
	for i := 0; i < 2; i++ {
		require.NoError(t, q.MarkInFlight(ctx, id))
		require.NoError(t, q.MarkFailed(ctx, id, errors.New("timeout")))
	}
	m, err := q.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, models.StatusAbandoned, m.Status)
	assert.True(t, q.HasOutstanding(ctx, "task:1"))

	require.NoError(t, q.Discard(ctx, id))
	assert.False(t, q.HasOutstanding(ctx, "task:1"))
}

func TestDiscard(t *testing.T) {
	ctx := context.Background()
	q, _, _ := newTestQueue(t, Options{})

	id, err := q.Enqueue(ctx, update("task:1", `{}`))
	require.NoError(t, err)

	require.NoError(t, q.Discard(ctx, id))
	assert.Empty(t, q.ListPending(ctx))
	assert.ErrorIs(t, q.Discard(ctx, id), ErrNotFound)
}

func TestOnChange(t *testing.T) {
	ctx := context.Background()
	q, _, _ := newTestQueue(t, Options{})

	calls := 0
	q.OnChange(func() { calls++ })

	id, err := q.Enqueue(ctx, update("task:1", `{}`))
	require.NoError(t, err)
	require.NoError(t, q.MarkInFlight(ctx, id))
	require.NoError(t, q.Dequeue(ctx, id))
	q.Reload(ctx)

	assert.Equal(t, 4, calls)
}

func TestRecoverStale(t *testing.T) {
	ctx := context.Background()
	q, adapter, fake := newTestQueue(t, Options{StaleAfter: time.Minute})

	id, err := q.Enqueue(ctx, update("task:1", `{}`))
	require.NoError(t, err)
	require.NoError(t, q.MarkInFlight(ctx, id))

	// Свежая попытка другой вкладки не трогается
	assert.Equal(t, 0, q.RecoverStale(ctx))

	fake.Advance(2 * time.Minute)
	reopened := Open(ctx, setupTestLogger(), adapter, fake, Options{StaleAfter: time.Minute})

	m, err := reopened.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, m.Status)
	assert.Equal(t, 0, m.AttemptCount, "recovery does not count an attempt")
}

func TestRelease(t *testing.T) {
	ctx := context.Background()
	q, _, _ := newTestQueue(t, Options{AttemptCeiling: 5})

	fresh, err := q.Enqueue(ctx, update("task:1", `{}`))
	require.NoError(t, err)
	retried, err := q.Enqueue(ctx, update("task:2", `{}`))
	require.NoError(t, err)

	require.NoError(t, q.MarkInFlight(ctx, retried))
	require.NoError(t, q.MarkFailed(ctx, retried, errors.New("timeout")))

	for _, id := range []string{fresh, retried} {
		require.NoError(t, q.MarkInFlight(ctx, id))
		require.NoError(t, q.Release(ctx, id))
	}

	m, err := q.Get(ctx, fresh)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, m.Status)
	assert.Equal(t, 0, m.AttemptCount)

	m, err = q.Get(ctx, retried)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, m.Status)
	assert.Equal(t, 1, m.AttemptCount)

	assert.ErrorIs(t, q.Release(ctx, fresh), ErrNotEligible)
}

// Очередь переживает аварийное завершение: новый процесс видит записи
func TestQueue_SurvivesRestart(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "durable.db")
	fake := clock.NewFake(epoch)

	durable, err := sqlite.New(ctx, dbPath, 0)
	require.NoError(t, err)
	adapter := tiered.New(setupTestLogger(), tiered.Tiers{Durable: durable}, clock.NewMonotonic(fake), 0.9)

	q := Open(ctx, setupTestLogger(), adapter, fake, Options{})
	id, err := q.Enqueue(ctx, update("task:1", `{"n":1}`))
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, update("task:1", `{"n":2}`))
	require.NoError(t, err)
	require.NoError(t, q.MarkInFlight(ctx, id))

	// Без Close: файл открывается заново
	durable2, err := sqlite.New(ctx, dbPath, 0)
	require.NoError(t, err)
	adapter2 := tiered.New(setupTestLogger(), tiered.Tiers{Durable: durable2}, clock.NewMonotonic(fake), 0.9)
	defer adapter2.Close()
	defer adapter.Close()

	q2 := Open(ctx, setupTestLogger(), adapter2, fake, Options{})
	pending := q2.ListPending(ctx)
	require.Len(t, pending, 2)
	assert.Equal(t, id, pending[0].ID)
	assert.Equal(t, models.StatusPending, pending[0].Status)

	// Seq продолжает нумерацию
	id3, err := q2.Enqueue(ctx, update("task:1", `{"n":3}`))
	require.NoError(t, err)
	m3, err := q2.Get(ctx, id3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), m3.Seq)
}

// Вкладка с быстрым уровнем видит изменения вкладки, у которой его нет
func TestQueue_SharedDurableTier(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "durable.db")
	fake := clock.NewFake(epoch)

	durable1, err := sqlite.New(ctx, dbPath, 0)
	require.NoError(t, err)
	adapter1 := tiered.New(setupTestLogger(), tiered.Tiers{Fast: memory.New(), Durable: durable1}, clock.NewMonotonic(fake), 0.9)
	defer adapter1.Close()

	durable2, err := sqlite.New(ctx, dbPath, 0)
	require.NoError(t, err)
	adapter2 := tiered.New(setupTestLogger(), tiered.Tiers{Durable: durable2}, clock.NewMonotonic(fake), 0.9)
	defer adapter2.Close()

	q1 := Open(ctx, setupTestLogger(), adapter1, fake, Options{TabID: "tab-1", StaleAfter: time.Hour})
	q2 := Open(ctx, setupTestLogger(), adapter2, fake, Options{TabID: "tab-2", StaleAfter: time.Hour})

	delivered, err := q1.Enqueue(ctx, update("task:1", `{"n":1}`))
	require.NoError(t, err)
	kept, err := q1.Enqueue(ctx, update("task:2", `{"n":2}`))
	require.NoError(t, err)
	require.NoError(t, adapter1.Flush(ctx))

	// Вторая вкладка захватывает одну мутацию и доставляет другую
	require.NoError(t, q2.MarkInFlight(ctx, kept))
	require.NoError(t, q2.MarkInFlight(ctx, delivered))
	require.NoError(t, q2.Dequeue(ctx, delivered))

	q1.Reload(ctx)
	pending := q1.ListPending(ctx)
	require.Len(t, pending, 1)
	assert.Equal(t, kept, pending[0].ID)
	assert.Equal(t, models.StatusInFlight, pending[0].Status)

	assert.ErrorIs(t, q1.MarkInFlight(ctx, kept), ErrAlreadyInFlight)
	_, err = q1.Get(ctx, delivered)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, q2.Counts(ctx), q1.Counts(ctx))
}

func TestFailureKindOf(t *testing.T) {
	assert.Equal(t, models.FailureTransport, FailureKindOf(errors.New("x")))
	assert.Equal(t, models.FailureTransport, FailureKindOf(nil))
	assert.Equal(t, models.FailureRejected, FailureKindOf(rejectedErr{}))
	assert.Equal(t, models.FailureRejected, FailureKindOf(errors.Join(errors.New("wrap"), rejectedErr{})))
}
