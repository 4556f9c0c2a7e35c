// Package service implements the risk scoring accumulator. Every applied
// event is a read-modify-write on the verification state under a row lock,
// paired with an immutable ledger row; two events racing for the same user
// serialize instead of losing an update.
package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"keohams/internal/outbox"
	rmetrics "keohams/internal/risk/metrics"
	"keohams/internal/risk/models"
	rstore "keohams/internal/risk/store"
	vstore "keohams/internal/verification/store"
	dErrors "keohams/pkg/domainerrors"
	txpkg "keohams/pkg/platform/tx"
	"keohams/pkg/requestcontext"
)

// Service applies risk events and serves the ledger.
type Service struct {
	events  rstore.Store
	states  vstore.Store
	outbox  outbox.Store
	txm     txpkg.Manager
	logger  *slog.Logger
	metrics *rmetrics.Metrics
	tracer  trace.Tracer
}

func New(
	events rstore.Store,
	states vstore.Store,
	outboxStore outbox.Store,
	txm txpkg.Manager,
	logger *slog.Logger,
	metrics *rmetrics.Metrics,
) *Service {
	return &Service{
		events:  events,
		states:  states,
		outbox:  outboxStore,
		txm:     txm,
		logger:  logger,
		metrics: metrics,
		tracer:  otel.Tracer("keohams/risk"),
	}
}

// Apply records one risk event for a user: clamps the new score to
// [0, 1000], recomputes the level, writes both to the verification state, and
// appends a ledger row capturing the delta and resulting values. Atomic per
// user.
func (s *Service) Apply(ctx context.Context, userID uuid.UUID, eventType models.EventType, delta int) (*models.Event, error) {
	ctx, span := s.tracer.Start(ctx, "risk.Apply")
	defer span.End()

	if !eventType.Valid() {
		return nil, dErrors.Newf(dErrors.CodeBadRequest, "unknown event type %q", eventType)
	}

	var event *models.Event
	err := s.txm.RunInTx(txpkg.WithUserKey(ctx, userID.String()), func(ctx context.Context) error {
		if _, err := s.states.Ensure(ctx, userID); err != nil {
			return err
		}
		state, err := s.states.GetForUpdate(ctx, userID)
		if err != nil {
			return err
		}

		raw := state.RiskScore + delta
		newScore := models.ClampScore(raw)
		newLevel := models.LevelForScore(newScore)
		prevLevel := state.RiskLevel

		state.RiskScore = newScore
		state.RiskLevel = newLevel
		if err := s.states.Update(ctx, state); err != nil {
			return err
		}

		now := requestcontext.Now(ctx)
		event = &models.Event{
			ID:             uuid.New(),
			UserID:         userID,
			Type:           eventType,
			Delta:          delta,
			ResultingScore: newScore,
			ResultingLevel: newLevel,
			Context: models.Context{
				ClientIP:  requestcontext.ClientIP(ctx),
				UserAgent: requestcontext.UserAgent(ctx),
			},
			CreatedAt: now,
		}
		if err := s.events.Append(ctx, event); err != nil {
			return err
		}

		if raw != newScore {
			s.metrics.RecordClamp()
		}
		if newLevel != prevLevel {
			s.metrics.RecordLevelTransition(string(newLevel))
			if err := s.enqueueLevelChange(ctx, userID, string(prevLevel), string(newLevel), newScore); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordEvent(string(eventType))
	s.logger.InfoContext(ctx, "risk event applied",
		"user_id", userID.String(),
		"event_type", string(eventType),
		"delta", delta,
		"resulting_score", event.ResultingScore,
		"resulting_level", string(event.ResultingLevel),
		"request_id", requestcontext.RequestID(ctx),
	)
	return event, nil
}

// List returns a user's ledger, newest first.
func (s *Service) List(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]*models.Event, int, error) {
	return s.events.ListByUser(ctx, userID, page, pageSize)
}

type levelChangePayload struct {
	UserID    string `json:"user_id"`
	FromLevel string `json:"from_level"`
	ToLevel   string `json:"to_level"`
	Score     int    `json:"score"`
}

func (s *Service) enqueueLevelChange(ctx context.Context, userID uuid.UUID, from, to string, score int) error {
	payload, err := json.Marshal(levelChangePayload{
		UserID:    userID.String(),
		FromLevel: from,
		ToLevel:   to,
		Score:     score,
	})
	if err != nil {
		return err
	}
	return s.outbox.Enqueue(ctx, &outbox.Event{
		ID:        uuid.New(),
		EventType: outbox.EventRiskLevelChanged,
		UserID:    userID,
		Payload:   payload,
		CreatedAt: requestcontext.Now(ctx),
	})
}
