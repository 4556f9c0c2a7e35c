// Package models defines the risk-event ledger and the score policy. The
// ledger is append-only: the sum of deltas in chronological order, clamped at
// each step, reconstructs the score stored on the verification state.
package models

import (
	"time"

	"github.com/google/uuid"

	vmodels "keohams/internal/verification/models"
)

// EventType labels a discrete trust signal.
type EventType string

const (
	EventLoginFailure     EventType = "LOGIN_FAILURE"
	EventKYCApproved      EventType = "KYC_APPROVED"
	EventKYCRejected      EventType = "KYC_REJECTED"
	EventSpamFlag         EventType = "SPAM_FLAG"
	EventChargeback       EventType = "CHARGEBACK"
	EventPasswordReset    EventType = "PASSWORD_RESET"
	EventManualAdjustment EventType = "MANUAL_ADJUSTMENT"
)

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	switch t {
	case EventLoginFailure, EventKYCApproved, EventKYCRejected, EventSpamFlag,
		EventChargeback, EventPasswordReset, EventManualAdjustment:
		return true
	}
	return false
}

// Score bounds and level thresholds. The cutoffs are policy constants, not
// derived values.
const (
	ScoreMin = 0
	ScoreMax = 1000

	thresholdMedium   = 250
	thresholdHigh     = 550
	thresholdCritical = 850
)

// Default deltas for events fed from the KYC review flow.
const (
	DeltaKYCApproved = -100
	DeltaKYCRejected = 75
)

// ClampScore bounds a score to [ScoreMin, ScoreMax].
func ClampScore(score int) int {
	if score < ScoreMin {
		return ScoreMin
	}
	if score > ScoreMax {
		return ScoreMax
	}
	return score
}

// LevelForScore maps a clamped score to its qualitative band.
func LevelForScore(score int) vmodels.RiskLevel {
	switch {
	case score < thresholdMedium:
		return vmodels.RiskLow
	case score < thresholdHigh:
		return vmodels.RiskMedium
	case score < thresholdCritical:
		return vmodels.RiskHigh
	default:
		return vmodels.RiskCritical
	}
}

// Context captures where an event originated. Both fields may be empty when
// the event came from a background flow.
type Context struct {
	ClientIP  string
	UserAgent string
}

// Event is one immutable ledger row. ResultingScore and ResultingLevel record
// the state after the delta was applied.
type Event struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	Type           EventType
	Delta          int
	ResultingScore int
	ResultingLevel vmodels.RiskLevel
	Context        Context
	CreatedAt      time.Time
}
