// Package models defines the canonical per-user verification state and its
// state machine. This row is the single source of truth for gating; submission
// status is historical record only.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Status is the canonical verification status of a user.
type Status string

const (
	StatusUnverified    Status = "UNVERIFIED"
	StatusBasicPending  Status = "BASIC_PENDING"
	StatusBasicVerified Status = "BASIC_VERIFIED"
	StatusKYCPending    Status = "KYC_PENDING"
	StatusKYCVerified   Status = "KYC_VERIFIED"
	StatusRejected      Status = "REJECTED"
	StatusLocked        Status = "LOCKED"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusUnverified, StatusBasicPending, StatusBasicVerified,
		StatusKYCPending, StatusKYCVerified, StatusRejected, StatusLocked:
		return true
	}
	return false
}

// RiskLevel is the qualitative band derived from the risk score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// State is the one-row-per-user verification record. Version guards optimistic
// updates; a stale write must fail rather than silently lose an update.
type State struct {
	UserID     uuid.UUID
	Status     Status
	RiskScore  int
	RiskLevel  RiskLevel
	ManualLock bool
	// LockedFrom remembers the status to restore on unlock.
	LockedFrom *Status
	Version    int64

	CreatedAt       time.Time
	UpdatedAt       time.Time
	BasicVerifiedAt *time.Time
	KYCSubmittedAt  *time.Time
	KYCVerifiedAt   *time.Time
	RejectedAt      *time.Time
	LockedAt        *time.Time
}

// NewState returns the lazily-created default row for a user.
func NewState(userID uuid.UUID, now time.Time) *State {
	return &State{
		UserID:    userID,
		Status:    StatusUnverified,
		RiskScore: 0,
		RiskLevel: RiskLow,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// transitions lists the legal status moves. Locking and unlocking are
// explicit admin operations handled outside this table.
var transitions = map[Status][]Status{
	StatusUnverified:    {StatusBasicPending, StatusKYCPending, StatusRejected},
	StatusBasicPending:  {StatusBasicVerified, StatusRejected},
	StatusBasicVerified: {StatusKYCPending, StatusRejected},
	StatusKYCPending:    {StatusKYCVerified, StatusRejected},
	StatusKYCVerified:   {StatusRejected},
	StatusRejected:      {StatusKYCPending},
	StatusLocked:        {},
}

// CanTransition reports whether moving from one status to another is legal.
// A no-op transition (from == to) is always allowed.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// GateReason explains a gate decision so the frontend can route the user.
type GateReason string

const (
	GateVerified     GateReason = "verified"
	GatePending      GateReason = "pending"
	GateRejected     GateReason = "rejected"
	GateNotSubmitted GateReason = "not_submitted"
	GateLocked       GateReason = "locked"
)

// GateDecision is the structured outcome of an access check.
type GateDecision struct {
	Allowed bool
	Reason  GateReason
	Status  Status
}

// Decide maps a canonical status to its gate outcome.
func Decide(status Status) GateDecision {
	switch status {
	case StatusKYCVerified:
		return GateDecision{Allowed: true, Reason: GateVerified, Status: status}
	case StatusKYCPending:
		return GateDecision{Allowed: false, Reason: GatePending, Status: status}
	case StatusRejected:
		return GateDecision{Allowed: false, Reason: GateRejected, Status: status}
	case StatusLocked:
		return GateDecision{Allowed: false, Reason: GateLocked, Status: status}
	default:
		return GateDecision{Allowed: false, Reason: GateNotSubmitted, Status: status}
	}
}
