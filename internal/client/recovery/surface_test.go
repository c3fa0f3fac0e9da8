package recovery

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/client/data"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/client/drafts"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/client/queue"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/client/storage/memory"
	clientsync "github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/client/sync"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/client/tiered"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/clock"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/models"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeStorage struct{ degraded bool }

func (f *fakeStorage) IsDegraded() bool { return f.degraded }

type fakeConn struct{ online bool }

func (f *fakeConn) IsOnline() bool { return f.online }

type testEnv struct {
	surface *Surface
	queue   *queue.Queue
	drafts  *drafts.Store
	clock   *clock.FakeClock
	storage *fakeStorage
	conn    *fakeConn
	sync    *clientsync.ServiceMock
	data    *data.ServiceMock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	fake := clock.NewFake(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	adapter := tiered.New(setupTestLogger(), tiered.Tiers{Fast: memory.New(), Durable: memory.New()}, clock.NewMonotonic(fake), 0.9)
	t.Cleanup(func() { _ = adapter.Close() })

	env := &testEnv{
		queue:   queue.Open(context.Background(), setupTestLogger(), adapter, fake, queue.Options{TabID: "tab-1", AttemptCeiling: 1}),
		drafts:  drafts.NewStore(setupTestLogger(), adapter, fake),
		clock:   fake,
		storage: &fakeStorage{},
		conn:    &fakeConn{online: true},
		sync: &clientsync.ServiceMock{
			IsSyncingFunc: func() bool { return false },
			TriggerSyncFunc: func(ctx context.Context) (clientsync.Result, error) {
				return clientsync.Result{Synced: 1}, nil
			},
		},
		data: &data.ServiceMock{
			SubmitFunc: func(ctx context.Context, sub data.Submission) (data.SubmitResult, error) {
				return data.SubmitResult{MutationID: "m", Delivered: true}, nil
			},
		},
	}
	env.surface = New(setupTestLogger(), Deps{
		Queue:   env.queue,
		Drafts:  env.drafts,
		Storage: env.storage,
		Conn:    env.conn,
		Sync:    env.sync,
		Data:    env.data,
	}, 24*time.Hour)
	return env
}

func (e *testEnv) enqueue(t *testing.T, entity string) string {
	t.Helper()
	id, err := e.queue.Enqueue(context.Background(), models.QueuedMutation{
		Kind:         models.MutationUpdate,
		TargetEntity: entity,
	})
	require.NoError(t, err)
	return id
}

type rejection struct{}

func (rejection) Error() string                   { return "rejected" }
func (rejection) FailureKind() models.FailureKind { return models.FailureRejected }

func TestSurface_Status(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	assert.Equal(t, Status{IsOnline: true}, env.surface.Status(ctx))
	assert.False(t, env.surface.Status(ctx).NeedsAttention())

	env.enqueue(t, "task:1")
	inFlight := env.enqueue(t, "task:2")
	require.NoError(t, env.queue.MarkInFlight(ctx, inFlight))

	rejected := env.enqueue(t, "task:3")
	require.NoError(t, env.queue.MarkInFlight(ctx, rejected))
	require.NoError(t, env.queue.MarkFailed(ctx, rejected, rejection{}))

	abandoned := env.enqueue(t, "task:4")
	for range 2 {
		require.NoError(t, env.queue.MarkInFlight(ctx, abandoned))
		require.NoError(t, env.queue.MarkFailed(ctx, abandoned, errors.New("timeout")))
	}

	require.True(t, env.drafts.SaveDraft(ctx, "note-1", map[string]string{"text": "hi"}))

	env.conn.online = false
	env.storage.degraded = true
	env.sync.IsSyncingFunc = func() bool { return true }

	st := env.surface.Status(ctx)
	assert.Equal(t, Status{
		PendingCount:   2,
		FailedCount:    1,
		RejectedCount:  1,
		AbandonedCount: 1,
		DraftCount:     1,
		IsOnline:       false,
		IsSyncing:      true,
		Degraded:       true,
	}, st)
	assert.True(t, st.NeedsAttention())
}

// Статус только читает: повторные вызовы ничего не меняют
func TestSurface_StatusDoesNotWrite(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	id := env.enqueue(t, "task:1")

	before, err := env.queue.Get(ctx, id)
	require.NoError(t, err)

	env.surface.Status(ctx)
	env.surface.Status(ctx)

	after, err := env.queue.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Empty(t, env.sync.TriggerSyncCalls())
}

func TestSurface_SyncNow(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.surface.SyncNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Synced)
	assert.Len(t, env.sync.TriggerSyncCalls(), 1)
}

func TestSurface_RetryDrafts(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	require.True(t, env.drafts.SaveDraft(ctx, "a", map[string]string{"text": "a"}))
	env.clock.Advance(time.Second)
	require.True(t, env.drafts.SaveDraft(ctx, "b", map[string]string{"text": "b"}))
	env.clock.Advance(time.Second)
	require.True(t, env.drafts.SaveDraft(ctx, "c", map[string]string{"text": "c"}))

	env.data.SubmitFunc = func(ctx context.Context, sub data.Submission) (data.SubmitResult, error) {
		switch sub.DraftKey {
		case drafts.Prefix + "a":
			return data.SubmitResult{Delivered: true}, nil
		case drafts.Prefix + "b":
			return data.SubmitResult{Queued: true}, nil
		default:
			return data.SubmitResult{}, errors.New("storage full")
		}
	}

	report := env.surface.RetryDrafts(ctx)

	assert.Equal(t, 3, report.Attempted)
	assert.Equal(t, 1, report.Delivered)
	assert.Equal(t, 1, report.Queued)
	assert.Len(t, report.Errors, 1)

	calls := env.data.SubmitCalls()
	require.Len(t, calls, 3)
	assert.Equal(t, drafts.Prefix+"c", calls[0].Sub.DraftKey, "новые черновики первыми")
	assert.Equal(t, models.MutationCreate, calls[0].Sub.Kind)
}

func TestSurface_RetryAndDiscard(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	id := env.enqueue(t, "task:1")
	require.NoError(t, env.queue.MarkInFlight(ctx, id))
	require.NoError(t, env.queue.MarkFailed(ctx, id, rejection{}))

	require.NoError(t, env.surface.Retry(ctx, id))
	m, err := env.queue.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, m.Status)

	require.NoError(t, env.surface.Discard(ctx, id))
	_, err = env.queue.Get(ctx, id)
	assert.ErrorIs(t, err, queue.ErrNotFound)

	assert.ErrorIs(t, env.surface.Discard(ctx, id), queue.ErrNotFound)
}

func TestSurface_DiscardAll(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	env.enqueue(t, "task:1")
	env.enqueue(t, "task:2")
	inFlight := env.enqueue(t, "task:3")
	require.NoError(t, env.queue.MarkInFlight(ctx, inFlight))

	require.True(t, env.drafts.SaveDraft(ctx, "a", map[string]string{"text": "a"}))
	require.True(t, env.drafts.SaveDraft(ctx, drafts.KeyQuickCapture, "remember milk"))

	report := env.surface.DiscardAll(ctx)

	assert.Equal(t, DiscardReport{Drafts: 2, Mutations: 2, Skipped: 1}, report)
	assert.Empty(t, env.drafts.ListPendingDrafts(ctx))

	left := env.queue.ListPending(ctx)
	require.Len(t, left, 1)
	assert.Equal(t, inFlight, left[0].ID)
}

func TestSurface_Maintain(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	require.True(t, env.drafts.SaveDraft(ctx, "old", map[string]string{"text": "old"}))
	env.clock.Advance(48 * time.Hour)
	require.True(t, env.drafts.SaveDraft(ctx, "new", map[string]string{"text": "new"}))
	env.enqueue(t, "task:1")

	assert.Zero(t, env.surface.Maintain(ctx), "без нехватки места ничего не удаляется")

	env.storage.degraded = true
	assert.Equal(t, 1, env.surface.Maintain(ctx))

	left := env.drafts.ListPendingDrafts(ctx)
	require.Len(t, left, 1)
	assert.Equal(t, "new", left[0].ID)
	assert.Len(t, env.queue.ListPending(ctx), 1, "мутации никогда не удаляются автоматически")
}

func TestBanner(t *testing.T) {
	tests := []struct {
		name    string
		want    []string
		wantNot []string
		status  Status
	}{
		{
			name:   "all saved",
			status: Status{IsOnline: true},
			want:   []string{"All changes saved"},
		},
		{
			name:    "offline with pending",
			status:  Status{PendingCount: 3},
			want:    []string{"Offline", "3 changes pending"},
			wantNot: []string{"sync now"},
		},
		{
			name:   "online with pending",
			status: Status{PendingCount: 1, IsOnline: true},
			want:   []string{"1 change pending", "sync now"},
		},
		{
			name:    "rejected is not retrying",
			status:  Status{FailedCount: 2, RejectedCount: 1, IsOnline: true},
			want:    []string{"1 change will retry", "1 change rejected by server", "retry or discard them"},
			wantNot: []string{"2 changes will retry"},
		},
		{
			name:   "abandoned",
			status: Status{AbandonedCount: 2, IsOnline: true},
			want:   []string{"2 changes gave up"},
		},
		{
			name:   "drafts and degraded",
			status: Status{DraftCount: 1, Degraded: true, IsOnline: true, IsSyncing: true},
			want:   []string{"1 unsent draft", "Local storage almost full", "Syncing", "retry drafts"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Banner(tt.status)
			for _, w := range tt.want {
				assert.Contains(t, got, w)
			}
			for _, w := range tt.wantNot {
				assert.NotContains(t, got, w)
			}
		})
	}
}
