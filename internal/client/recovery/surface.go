// Package recovery aggregates drafts, the mutation queue and connectivity
// into one view and the user actions that act on them. It stores nothing.
package recovery

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/client/data"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/client/queue"
	clientsync "github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/client/sync"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/models"
)

// Queue is the part of the mutation queue the surface reads and acts on.
type Queue interface {
	Counts(ctx context.Context) queue.Counts
	ListPending(ctx context.Context) []models.QueuedMutation
	Retry(ctx context.Context, id string) error
	Discard(ctx context.Context, id string) error
}

// Drafts is the part of the draft store the surface reads and acts on.
type Drafts interface {
	ListPendingDrafts(ctx context.Context) []models.Draft
	DeleteDraft(ctx context.Context, key string)
	Prune(ctx context.Context, maxAge time.Duration) int
}

// Storage reports local storage health.
type Storage interface {
	IsDegraded() bool
}

// Connectivity is the online hint.
type Connectivity interface {
	IsOnline() bool
}

// Deps are the components the surface is derived from.
type Deps struct {
	Queue   Queue
	Drafts  Drafts
	Storage Storage
	Conn    Connectivity
	Sync    clientsync.Service
	Data    data.Service
}

// Status is what the user sees about unsaved and undelivered work.
type Status struct {
	PendingCount   int // PendingCount ещё не доставлены (включая in-flight)
	FailedCount    int // FailedCount последняя попытка неудачна, ещё будут повторы
	RejectedCount  int // RejectedCount подмножество FailedCount: сервер отверг изменение
	AbandonedCount int // AbandonedCount исчерпан лимит попыток, нужно действие пользователя
	DraftCount     int
	IsOnline       bool
	IsSyncing      bool
	Degraded       bool // Degraded локальное хранилище почти заполнено
}

// NeedsAttention reports whether anything is unsaved or undelivered.
func (s Status) NeedsAttention() bool {
	return s.PendingCount+s.FailedCount+s.AbandonedCount+s.DraftCount > 0 || s.Degraded
}

// RetryReport summarizes RetryDrafts.
type RetryReport struct {
	Errors    []error
	Attempted int
	Delivered int
	Queued    int
}

// DiscardReport summarizes DiscardAll.
type DiscardReport struct {
	Drafts    int
	Mutations int
	Skipped   int // Skipped мутации в процессе отправки не удаляются
}

// Surface is the recovery view and its actions.
type Surface struct {
	deps        Deps
	logger      *slog.Logger
	draftMaxAge time.Duration
}

// New creates a recovery surface. Drafts older than draftMaxAge are pruned
// by Maintain while storage is degraded.
func New(logger *slog.Logger, deps Deps, draftMaxAge time.Duration) *Surface {
	return &Surface{deps: deps, logger: logger, draftMaxAge: draftMaxAge}
}

// Status derives the current state. It never writes.
func (s *Surface) Status(ctx context.Context) Status {
	counts := s.deps.Queue.Counts(ctx)
	return Status{
		PendingCount:   counts.Pending + counts.InFlight,
		FailedCount:    counts.Failed,
		RejectedCount:  counts.Rejected,
		AbandonedCount: counts.Abandoned,
		DraftCount:     len(s.deps.Drafts.ListPendingDrafts(ctx)),
		IsOnline:       s.deps.Conn.IsOnline(),
		IsSyncing:      s.deps.Sync.IsSyncing(),
		Degraded:       s.deps.Storage.IsDegraded(),
	}
}

// Mutations returns every queued mutation in creation order.
func (s *Surface) Mutations(ctx context.Context) []models.QueuedMutation {
	return s.deps.Queue.ListPending(ctx)
}

// Drafts returns every unsubmitted draft, newest first.
func (s *Surface) Drafts(ctx context.Context) []models.Draft {
	return s.deps.Drafts.ListPendingDrafts(ctx)
}

// SyncNow drains the queue once.
func (s *Surface) SyncNow(ctx context.Context) (clientsync.Result, error) {
	return s.deps.Sync.TriggerSync(ctx)
}

// RetryDrafts submits every outstanding draft through the normal
// submission path. A draft that fails to submit stays in place.
func (s *Surface) RetryDrafts(ctx context.Context) RetryReport {
	var report RetryReport
	for _, d := range s.deps.Drafts.ListPendingDrafts(ctx) {
		report.Attempted++
		result, err := s.RetryDraft(ctx, d)
		switch {
		case err != nil:
			report.Errors = append(report.Errors, err)
		case result.Delivered:
			report.Delivered++
		case result.Queued:
			report.Queued++
		}
	}

	s.logger.Info("Drafts retried",
		"attempted", report.Attempted, "delivered", report.Delivered, "queued", report.Queued, "errors", len(report.Errors))
	return report
}

// RetryDraft submits one draft.
func (s *Surface) RetryDraft(ctx context.Context, d models.Draft) (data.SubmitResult, error) {
	return s.deps.Data.Submit(ctx, data.DraftSubmission(d))
}

// Retry makes a failed or abandoned mutation pending again.
func (s *Surface) Retry(ctx context.Context, id string) error {
	return s.deps.Queue.Retry(ctx, id)
}

// Discard removes one mutation. The change is lost.
func (s *Surface) Discard(ctx context.Context, id string) error {
	return s.deps.Queue.Discard(ctx, id)
}

// DiscardAll removes every draft and every mutation that is not being
// delivered right now.
func (s *Surface) DiscardAll(ctx context.Context) DiscardReport {
	var report DiscardReport

	for _, d := range s.deps.Drafts.ListPendingDrafts(ctx) {
		s.deps.Drafts.DeleteDraft(ctx, d.Key)
		report.Drafts++
	}

	for _, m := range s.deps.Queue.ListPending(ctx) {
		err := s.deps.Queue.Discard(ctx, m.ID)
		switch {
		case err == nil:
			report.Mutations++
		case errors.Is(err, queue.ErrAlreadyInFlight):
			report.Skipped++
		case errors.Is(err, queue.ErrNotFound):
			// Уже удалена другой вкладкой
		default:
			s.logger.Warn("Failed to discard mutation", "mutation_id", m.ID, "error", err)
			report.Skipped++
		}
	}

	s.logger.Info("Discarded local changes",
		"drafts", report.Drafts, "mutations", report.Mutations, "skipped", report.Skipped)
	return report
}

// Maintain prunes old drafts while storage is degraded. Queued mutations
// are never pruned. Returns the number of drafts removed.
func (s *Surface) Maintain(ctx context.Context) int {
	if !s.deps.Storage.IsDegraded() || s.draftMaxAge <= 0 {
		return 0
	}
	return s.deps.Drafts.Prune(ctx, s.draftMaxAge)
}
