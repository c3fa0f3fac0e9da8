package data

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/client/api"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/client/connectivity"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/client/drafts"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/client/queue"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/client/storage/memory"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/client/tiered"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/clock"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/models"
	wire "github.com/ContentRemixTeam/logic-block-foundation-sub010/pkg/api"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	service Service
	queue   *queue.Queue
	drafts  *drafts.Store
	remote  *api.RemoteMock
	monitor *connectivity.Monitor
}

func newTestEnv(t *testing.T, online bool) *testEnv {
	t.Helper()

	fake := clock.NewFake(epoch)
	adapter := tiered.New(setupTestLogger(), tiered.Tiers{Fast: memory.New(), Durable: memory.New()}, clock.NewMonotonic(fake), 0.9)
	t.Cleanup(func() { _ = adapter.Close() })

	q := queue.Open(context.Background(), setupTestLogger(), adapter, fake, queue.Options{TabID: "tab-1", AttemptCeiling: 5})
	store := drafts.NewStore(setupTestLogger(), adapter, fake)
	remote := &api.RemoteMock{
		ApplyMutationFunc: func(ctx context.Context, req wire.MutationRequest) (*wire.MutationResponse, error) {
			return &wire.MutationResponse{ID: req.ID, TargetEntity: req.TargetEntity, Version: 7}, nil
		},
		PingFunc: func(ctx context.Context) error { return nil },
	}
	monitor := connectivity.NewMonitor(setupTestLogger(), remote, fake, 0, online)

	return &testEnv{
		service: NewService(setupTestLogger(), remote, q, store, monitor, fake, Options{TabID: "tab-1", RequestTimeout: time.Second}),
		queue:   q,
		drafts:  store,
		remote:  remote,
		monitor: monitor,
	}
}

func TestSubmit_OnlineDelivers(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, true)
	require.True(t, env.drafts.SaveDraft(ctx, "new-task", map[string]string{"title": "x"}))

	result, err := env.service.Submit(ctx, Submission{
		Kind:         models.MutationCreate,
		TargetEntity: "task:1",
		Payload:      json.RawMessage(`{"title":"x"}`),
		DraftKey:     "new-task",
	})

	require.NoError(t, err)
	assert.True(t, result.Delivered)
	assert.False(t, result.Queued)
	assert.Equal(t, int64(7), result.Version)
	assert.NotEmpty(t, result.MutationID)

	calls := env.remote.ApplyMutationCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, result.MutationID, calls[0].Req.ID)
	assert.Equal(t, "tab-1", calls[0].Req.OriginTabID)
	_, hasDeadline := calls[0].Ctx.Deadline()
	assert.True(t, hasDeadline)

	assert.Empty(t, env.queue.ListPending(ctx))
	_, ok := env.drafts.LoadDraft(ctx, "new-task")
	assert.False(t, ok, "delivered draft is promoted")
}

func TestSubmit_OfflineQueues(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, false)
	require.True(t, env.drafts.SaveDraft(ctx, "new-task", "text"))

	result, err := env.service.Submit(ctx, Submission{
		Kind:         models.MutationCreate,
		TargetEntity: "task:1",
		Payload:      json.RawMessage(`{}`),
		DraftKey:     "new-task",
	})

	require.NoError(t, err)
	assert.True(t, result.Queued)
	assert.False(t, result.Delivered)
	assert.Empty(t, env.remote.ApplyMutationCalls())

	m, err := env.queue.Get(ctx, result.MutationID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, m.Status)
	assert.Equal(t, 0, m.AttemptCount)

	_, ok := env.drafts.LoadDraft(ctx, "new-task")
	assert.False(t, ok)
}

func TestSubmit_FailedAttemptQueuedAsFirstAttempt(t *testing.T) {
	tests := []struct {
		err  error
		name string
		want models.FailureKind
	}{
		{
			name: "transport",
			err:  &api.RemoteError{Kind: models.FailureTransport, Err: errors.New("connection refused")},
			want: models.FailureTransport,
		},
		{
			name: "rejected",
			err:  &api.RemoteError{Kind: models.FailureRejected, StatusCode: 422, Message: "title is required"},
			want: models.FailureRejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			env := newTestEnv(t, true)
			env.remote.ApplyMutationFunc = func(ctx context.Context, req wire.MutationRequest) (*wire.MutationResponse, error) {
				return nil, tt.err
			}

			result, err := env.service.Submit(ctx, Submission{
				Kind:         models.MutationUpdate,
				TargetEntity: "task:1",
				Payload:      json.RawMessage(`{}`),
			})

			require.NoError(t, err)
			assert.True(t, result.Queued)
			assert.Equal(t, tt.want, result.Failure)
			assert.NotEmpty(t, result.LastError)

			m, err := env.queue.Get(ctx, result.MutationID)
			require.NoError(t, err)
			assert.Equal(t, models.StatusFailed, m.Status)
			assert.Equal(t, 1, m.AttemptCount)
			assert.Equal(t, tt.want, m.FailureKind)
		})
	}
}

func TestSubmit_Invalid(t *testing.T) {
	env := newTestEnv(t, true)

	_, err := env.service.Submit(context.Background(), Submission{Kind: "merge", TargetEntity: "task:1"})
	assert.ErrorIs(t, err, ErrInvalidSubmission)

	_, err = env.service.Submit(context.Background(), Submission{Kind: models.MutationCreate})
	assert.ErrorIs(t, err, ErrInvalidSubmission)
	assert.Empty(t, env.remote.ApplyMutationCalls())
}

// Если очередь не приняла запись, черновик остаётся
func TestSubmit_QueueFailureKeepsDraft(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, false)
	require.True(t, env.drafts.SaveDraft(ctx, "new-task", "text"))

	svc := NewService(setupTestLogger(), env.remote, failingQueue{}, env.drafts, env.monitor, clock.NewFake(epoch), Options{})
	_, err := svc.Submit(ctx, Submission{Kind: models.MutationCreate, TargetEntity: "task:1", DraftKey: "new-task"})

	assert.ErrorIs(t, err, queue.ErrNotPersisted)
	_, ok := env.drafts.LoadDraft(ctx, "new-task")
	assert.True(t, ok)
}

type failingQueue struct{}

func (failingQueue) Enqueue(context.Context, models.QueuedMutation) (string, error) {
	return "", queue.ErrNotPersisted
}

func (failingQueue) HasOutstanding(context.Context, string) bool { return false }

// Онлайн-запись не обгоняет записи той же сущности, ждущие в очереди
func TestSubmit_QueuesBehindOutstandingEntries(t *testing.T) {
	attempt := func(t *testing.T, q *queue.Queue, id string) {
		t.Helper()
		require.NoError(t, q.MarkInFlight(context.Background(), id))
		require.NoError(t, q.MarkFailed(context.Background(), id, errors.New("connection reset")))
	}

	tests := []struct {
		name    string
		prepare func(t *testing.T, q *queue.Queue, id string)
		want    models.MutationStatus
	}{
		{name: "pending", prepare: func(*testing.T, *queue.Queue, string) {}, want: models.StatusPending},
		{
			name: "in flight",
			prepare: func(t *testing.T, q *queue.Queue, id string) {
				require.NoError(t, q.MarkInFlight(context.Background(), id))
			},
			want: models.StatusInFlight,
		},
		{name: "failed", prepare: attempt, want: models.StatusFailed},
		{
			name: "abandoned",
			prepare: func(t *testing.T, q *queue.Queue, id string) {
				for i := 0; i < 10; i++ {
					m, err := q.Get(context.Background(), id)
					require.NoError(t, err)
					if m.Status == models.StatusAbandoned {
						return
					}
					attempt(t, q, id)
				}
			},
			want: models.StatusAbandoned,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			env := newTestEnv(t, true)

			earlierID, err := env.queue.Enqueue(ctx, models.QueuedMutation{
				Kind: models.MutationUpdate, TargetEntity: "task:1", Payload: json.RawMessage(`{"title":"first"}`),
			})
			require.NoError(t, err)
			tt.prepare(t, env.queue, earlierID)
			earlier, err := env.queue.Get(ctx, earlierID)
			require.NoError(t, err)
			require.Equal(t, tt.want, earlier.Status)

			result, err := env.service.Submit(ctx, Submission{
				Kind:         models.MutationUpdate,
				TargetEntity: "task:1",
				Payload:      json.RawMessage(`{"title":"second"}`),
			})
			require.NoError(t, err)

			assert.True(t, result.Queued)
			assert.False(t, result.Delivered)
			assert.Empty(t, result.LastError)
			assert.Empty(t, env.remote.ApplyMutationCalls(), "no direct attempt while the entity has queued writes")

			m, err := env.queue.Get(ctx, result.MutationID)
			require.NoError(t, err)
			assert.Equal(t, models.StatusPending, m.Status)
			assert.Equal(t, 0, m.AttemptCount)

			all := env.queue.ListPending(ctx)
			require.Len(t, all, 2)
			assert.Equal(t, earlierID, all[0].ID)
			assert.Equal(t, result.MutationID, all[1].ID)
		})
	}
}

// Записи других сущностей не мешают немедленной доставке
func TestSubmit_OtherEntityQueuedStillDelivers(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, true)

	_, err := env.queue.Enqueue(ctx, models.QueuedMutation{Kind: models.MutationUpdate, TargetEntity: "task:2", Payload: json.RawMessage(`{}`)})
	require.NoError(t, err)

	result, err := env.service.Submit(ctx, Submission{Kind: models.MutationUpdate, TargetEntity: "task:1", Payload: json.RawMessage(`{}`)})
	require.NoError(t, err)
	assert.True(t, result.Delivered)
	assert.Len(t, env.remote.ApplyMutationCalls(), 1)
}

func TestDraftSubmission(t *testing.T) {
	tests := []struct {
		name        string
		draft       models.Draft
		wantKind    models.MutationKind
		wantEntity  string
		wantPayload string
		wantDraft   string
	}{
		{
			name:        "form draft",
			draft:       models.Draft{ID: "meeting", Key: "draft:meeting", Source: models.DraftSourceForm, Data: json.RawMessage(`{"title":"m"}`)},
			wantKind:    models.MutationCreate,
			wantEntity:  "note:meeting",
			wantPayload: `{"title":"m"}`,
			wantDraft:   "draft:meeting",
		},
		{
			name:        "draft naming its entity",
			draft:       models.Draft{ID: "x", Key: "draft:x", Source: models.DraftSourceForm, Data: json.RawMessage(`{"entity":"goal:3","title":"g"}`)},
			wantKind:    models.MutationCreate,
			wantEntity:  "goal:3",
			wantPayload: `{"entity":"goal:3","title":"g"}`,
			wantDraft:   "draft:x",
		},
		{
			name:        "quick capture text",
			draft:       models.Draft{ID: "quick-capture", Key: "quick-capture", Source: models.DraftSourceQuickCapture, Data: json.RawMessage(`"buy milk"`), Timestamp: 1000},
			wantKind:    models.MutationCreate,
			wantEntity:  "capture:1000",
			wantPayload: `{"value":"buy milk"}`,
			wantDraft:   "quick-capture",
		},
		{
			name:        "task edit",
			draft:       models.Draft{ID: "task-edit:42", Key: "task-edit:42", Source: models.DraftSourceTaskEdit, Data: json.RawMessage(`{"title":"t"}`)},
			wantKind:    models.MutationUpdate,
			wantEntity:  "task:42",
			wantPayload: `{"title":"t"}`,
			wantDraft:   "task-edit:42",
		},
		{
			name:        "emergency snapshot",
			draft:       models.Draft{ID: "emergency:abc", Key: "emergency:abc", Source: models.DraftSourceEmergency, Data: json.RawMessage(`[1,2]`)},
			wantKind:    models.MutationCreate,
			wantEntity:  "note:abc",
			wantPayload: `{"value":[1,2]}`,
			wantDraft:   "emergency:abc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := DraftSubmission(tt.draft)
			assert.Equal(t, tt.wantKind, sub.Kind)
			assert.Equal(t, tt.wantEntity, sub.TargetEntity)
			assert.JSONEq(t, tt.wantPayload, string(sub.Payload))
			assert.Equal(t, tt.wantDraft, sub.DraftKey)
		})
	}
}
