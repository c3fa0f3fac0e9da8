// Package data is the submission path: a user-authored write is delivered
// immediately when possible and queued otherwise.
package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/client/api"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/client/queue"
	clientsync "github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/client/sync"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/clock"
	"github.com/ContentRemixTeam/logic-block-foundation-sub010/internal/models"
)

// ErrInvalidSubmission indicates missing or unknown fields
var ErrInvalidSubmission = errors.New("invalid submission")

//go:generate moq -out service_mock.go . Service

// Service определяет интерфейс пути отправки изменений
type Service interface {
	// Submit delivers or queues one write. The draft named by DraftKey,
	// if any, is removed once the write is delivered or durably queued.
	Submit(ctx context.Context, sub Submission) (SubmitResult, error)
}

// Queue is the part of the mutation queue the service writes to.
type Queue interface {
	Enqueue(ctx context.Context, m models.QueuedMutation) (string, error)
	HasOutstanding(ctx context.Context, entity string) bool
}

// Drafts removes promoted drafts.
type Drafts interface {
	DeleteDraft(ctx context.Context, key string)
}

// Connectivity is the online hint.
type Connectivity interface {
	IsOnline() bool
}

// Submission is one user-authored write.
type Submission struct {
	Kind         models.MutationKind
	TargetEntity string
	Payload      json.RawMessage
	DraftKey     string // DraftKey черновик, который становится этой отправкой ("" = нет)
}

// SubmitResult describes what happened to a submission.
type SubmitResult struct {
	MutationID string
	LastError  string             // ошибка немедленной попытки, если она была
	Failure    models.FailureKind // класс этой ошибки
	Version    int64              // версия сущности на сервере после доставки
	Delivered  bool               // сервер подтвердил запись
	Queued     bool               // запись ждёт в очереди
}

// Options tune the service.
type Options struct {
	TabID          string
	RequestTimeout time.Duration
}

// service handles client-side submissions
type service struct {
	remote api.Remote
	queue  Queue
	drafts Drafts
	conn   Connectivity
	clk    clock.Clock
	logger *slog.Logger
	opts   Options
}

// NewService creates a new data service
func NewService(logger *slog.Logger, remote api.Remote, q Queue, drafts Drafts, conn Connectivity, clk clock.Clock, opts Options) Service {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 15 * time.Second
	}
	return &service{
		remote: remote,
		queue:  q,
		drafts: drafts,
		conn:   conn,
		clk:    clk,
		logger: logger,
		opts:   opts,
	}
}

// Submit sends the write right away when online. When offline, or when the
// attempt fails, the write is queued; a failed attempt counts as attempt 1.
// A write for an entity that still has queued entries is queued behind
// them without an attempt, so it can't reach the server first.
func (s *service) Submit(ctx context.Context, sub Submission) (SubmitResult, error) {
	if !sub.Kind.Valid() {
		return SubmitResult{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidSubmission, sub.Kind)
	}
	if sub.TargetEntity == "" {
		return SubmitResult{}, fmt.Errorf("%w: target entity is empty", ErrInvalidSubmission)
	}

	m := models.QueuedMutation{
		ID:           uuid.New().String(),
		Kind:         sub.Kind,
		TargetEntity: sub.TargetEntity,
		Payload:      sub.Payload,
		CreatedAt:    clock.UnixMilli(s.clk),
		OriginTabID:  s.opts.TabID,
	}
	result := SubmitResult{MutationID: m.ID}

	switch {
	case !s.conn.IsOnline():
		// офлайн: сразу в очередь
	case s.queue.HasOutstanding(ctx, m.TargetEntity):
		s.logger.Info("Entity has queued writes, queueing behind them", "mutation_id", m.ID, "entity", m.TargetEntity)
	default:
		version, err := s.deliver(ctx, m)
		if err == nil {
			result.Delivered = true
			result.Version = version
			s.promoted(ctx, sub.DraftKey)
			s.logger.Info("Submission delivered", "mutation_id", m.ID, "entity", m.TargetEntity)
			return result, nil
		}

		m.AttemptCount = 1
		m.LastError = err.Error()
		m.FailureKind = queue.FailureKindOf(err)
		result.LastError = m.LastError
		result.Failure = m.FailureKind
		s.logger.Warn("Immediate delivery failed, queueing",
			"mutation_id", m.ID, "failure", m.FailureKind, "error", err)
	}

	if _, err := s.queue.Enqueue(ctx, m); err != nil {
		// Черновик остаётся: запись никуда не попала
		return result, fmt.Errorf("failed to queue submission: %w", err)
	}
	result.Queued = true
	s.promoted(ctx, sub.DraftKey)

	s.logger.Info("Submission queued", "mutation_id", m.ID, "entity", m.TargetEntity)
	return result, nil
}

func (s *service) deliver(ctx context.Context, m models.QueuedMutation) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.RequestTimeout)
	defer cancel()

	resp, err := s.remote.ApplyMutation(ctx, clientsync.Request(m))
	if err != nil {
		return 0, err
	}
	return resp.Version, nil
}

func (s *service) promoted(ctx context.Context, draftKey string) {
	if draftKey == "" || s.drafts == nil {
		return
	}
	s.drafts.DeleteDraft(ctx, draftKey)
}

// DraftSubmission turns a recovered draft into a submission.
// Unfinished task edits become updates of that task; everything else is
// created under a key derived from the draft, so promoting the same draft
// twice can't create two entities.
func DraftSubmission(d models.Draft) Submission {
	sub := Submission{
		Kind:     models.MutationCreate,
		Payload:  objectPayload(d.Data),
		DraftKey: d.Key,
	}
	if sub.DraftKey == "" {
		sub.DraftKey = d.ID
	}

	// Черновик может сам указать сущность
	var target struct {
		Entity string `json:"entity"`
	}
	if err := json.Unmarshal(d.Data, &target); err == nil && target.Entity != "" {
		sub.TargetEntity = target.Entity
		return sub
	}

	// Устаревшие черновики хранят ID вместе с префиксом пространства
	id := strings.TrimPrefix(d.ID, string(d.Source)+":")

	switch d.Source {
	case models.DraftSourceTaskEdit:
		sub.Kind = models.MutationUpdate
		sub.TargetEntity = "task:" + id
	case models.DraftSourceQuickCapture:
		sub.TargetEntity = fmt.Sprintf("capture:%d", d.Timestamp)
	default:
		sub.TargetEntity = "note:" + id
	}
	return sub
}

// objectPayload wraps non-object JSON so the server always gets an object.
func objectPayload(raw json.RawMessage) json.RawMessage {
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "{") {
		return raw
	}
	if trimmed == "" {
		trimmed = "null"
	}
	return json.RawMessage(`{"value":` + trimmed + `}`)
}
