//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"keohams/internal/risk/models"
	"keohams/internal/risk/store"
	vmodels "keohams/internal/verification/models"
	"keohams/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = store.NewPostgresStore(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "risk_events")
	s.Require().NoError(err)
}

func newEvent(userID uuid.UUID, eventType models.EventType, delta, score int, at time.Time) *models.Event {
	return &models.Event{
		ID:             uuid.New(),
		UserID:         userID,
		Type:           eventType,
		Delta:          delta,
		ResultingScore: score,
		ResultingLevel: vmodels.RiskLow,
		Context:        models.Context{ClientIP: "203.0.113.9", UserAgent: "Firefox 143 (Linux)"},
		CreatedAt:      at,
	}
}

func (s *PostgresStoreSuite) TestAppendAndListRoundTrip() {
	ctx := context.Background()
	userID := uuid.New()
	at := time.Now().UTC().Truncate(time.Microsecond)

	event := newEvent(userID, models.EventLoginFailure, 10, 10, at)
	s.Require().NoError(s.store.Append(ctx, event))

	events, total, err := s.store.ListByUser(ctx, userID, 1, 10)
	s.Require().NoError(err)
	s.Equal(1, total)
	s.Require().Len(events, 1)
	s.Equal(event.ID, events[0].ID)
	s.Equal(models.EventLoginFailure, events[0].Type)
	s.Equal(10, events[0].Delta)
	s.Equal("203.0.113.9", events[0].Context.ClientIP)
	s.Equal("Firefox 143 (Linux)", events[0].Context.UserAgent)
	s.WithinDuration(at, events[0].CreatedAt, time.Millisecond)
}

func (s *PostgresStoreSuite) TestListNewestFirstAndPaginates() {
	ctx := context.Background()
	userID := uuid.New()
	base := time.Now().UTC().Truncate(time.Microsecond)

	var latest uuid.UUID
	for i := 0; i < 5; i++ {
		event := newEvent(userID, models.EventLoginFailure, 10, 10*(i+1), base.Add(time.Duration(i)*time.Second))
		s.Require().NoError(s.store.Append(ctx, event))
		latest = event.ID
	}
	// Another user's events never leak into the listing.
	s.Require().NoError(s.store.Append(ctx, newEvent(uuid.New(), models.EventChargeback, 200, 200, base)))

	events, total, err := s.store.ListByUser(ctx, userID, 1, 3)
	s.Require().NoError(err)
	s.Equal(5, total)
	s.Require().Len(events, 3)
	s.Equal(latest, events[0].ID)

	secondPage, _, err := s.store.ListByUser(ctx, userID, 2, 3)
	s.Require().NoError(err)
	s.Len(secondPage, 2)
}
