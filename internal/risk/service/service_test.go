package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"keohams/internal/outbox"
	"keohams/internal/risk/models"
	rstore "keohams/internal/risk/store"
	vmodels "keohams/internal/verification/models"
	vstore "keohams/internal/verification/store"
	dErrors "keohams/pkg/domainerrors"
	txpkg "keohams/pkg/platform/tx"
)

type fixture struct {
	svc    *Service
	states *vstore.MemoryStore
	events *rstore.MemoryStore
	outbox *outbox.MemoryStore
}

func newFixture() *fixture {
	states := vstore.NewMemoryStore()
	events := rstore.NewMemoryStore()
	outboxStore := outbox.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := New(events, states, outboxStore, txpkg.NewMemoryManager(), logger, nil)
	return &fixture{svc: svc, states: states, events: events, outbox: outboxStore}
}

func TestApplyAccumulatesAndClamps(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	userID := uuid.New()

	steps := []struct {
		delta     int
		wantScore int
		wantLevel vmodels.RiskLevel
	}{
		{100, 100, vmodels.RiskLow},
		{200, 300, vmodels.RiskMedium},
		{300, 600, vmodels.RiskHigh},
		{500, 1000, vmodels.RiskCritical}, // clamped at 1000
		{-2000, 0, vmodels.RiskLow},       // clamped at 0
	}
	for _, step := range steps {
		event, err := f.svc.Apply(ctx, userID, models.EventManualAdjustment, step.delta)
		require.NoError(t, err)
		assert.Equal(t, step.wantScore, event.ResultingScore)
		assert.Equal(t, step.wantLevel, event.ResultingLevel)

		state, err := f.states.Get(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, step.wantScore, state.RiskScore)
		assert.Equal(t, step.wantLevel, state.RiskLevel)
	}

	_, total, err := f.svc.List(ctx, userID, 1, 50)
	require.NoError(t, err)
	assert.Equal(t, len(steps), total)
}

func TestApplyLoginFailureCrossesIntoCritical(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	userID := uuid.New()

	// Seed the score to 820 (HIGH).
	_, err := f.svc.Apply(ctx, userID, models.EventManualAdjustment, 820)
	require.NoError(t, err)

	event, err := f.svc.Apply(ctx, userID, models.EventLoginFailure, 50)
	require.NoError(t, err)
	assert.Equal(t, 870, event.ResultingScore)
	assert.Equal(t, vmodels.RiskCritical, event.ResultingLevel)

	events, total, err := f.svc.List(ctx, userID, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, 870, events[0].ResultingScore, "newest event first")
}

func TestApplyRejectsUnknownEventType(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Apply(context.Background(), uuid.New(), models.EventType("GREMLIN"), 10)
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeBadRequest))
}

func TestApplyConcurrentEventsLoseNoUpdates(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	userID := uuid.New()

	const workers = 20
	var g errgroup.Group
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			_, err := f.svc.Apply(ctx, userID, models.EventLoginFailure, 10)
			return err
		})
	}
	require.NoError(t, g.Wait())

	state, err := f.states.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, workers*10, state.RiskScore)

	_, total, err := f.svc.List(ctx, userID, 1, workers)
	require.NoError(t, err)
	assert.Equal(t, workers, total)
}

func TestApplyLedgerReconstructsScore(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	userID := uuid.New()

	deltas := []int{50, 300, -100, 700, 200, -400}
	for _, d := range deltas {
		_, err := f.svc.Apply(ctx, userID, models.EventManualAdjustment, d)
		require.NoError(t, err)
	}

	events, _, err := f.svc.List(ctx, userID, 1, len(deltas))
	require.NoError(t, err)

	// Replay oldest to newest.
	score := 0
	for i := len(events) - 1; i >= 0; i-- {
		score = models.ClampScore(score + events[i].Delta)
		assert.Equal(t, events[i].ResultingScore, score)
	}
	state, err := f.states.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, score, state.RiskScore)
}

func TestApplyEnqueuesLevelChangeNotification(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	userID := uuid.New()

	_, err := f.svc.Apply(ctx, userID, models.EventSpamFlag, 300)
	require.NoError(t, err)

	var levelEvents int
	for _, event := range f.outbox.All() {
		if event.EventType == outbox.EventRiskLevelChanged {
			levelEvents++
			assert.Equal(t, userID, event.UserID)
		}
	}
	assert.Equal(t, 1, levelEvents)

	// Same-level event must not enqueue another notification.
	_, err = f.svc.Apply(ctx, userID, models.EventSpamFlag, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, countLevelChanges(f.outbox))
}

func countLevelChanges(store *outbox.MemoryStore) int {
	n := 0
	for _, event := range store.All() {
		if event.EventType == outbox.EventRiskLevelChanged {
			n++
		}
	}
	return n
}
