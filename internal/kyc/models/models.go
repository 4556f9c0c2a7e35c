// Package models defines KYC submissions. A submission is one verification
// attempt; rows are never deleted, and their status is historical record.
// The canonical verification state, not this table, gates access.
package models

import (
	"time"

	"github.com/google/uuid"

	dErrors "keohams/pkg/domainerrors"
)

// SubmissionStatus is the lifecycle of a single attempt.
type SubmissionStatus string

const (
	SubmissionPending  SubmissionStatus = "PENDING"
	SubmissionApproved SubmissionStatus = "APPROVED"
	SubmissionRejected SubmissionStatus = "REJECTED"
)

// Decision is an admin review outcome.
type Decision string

const (
	DecisionApproved Decision = "APPROVED"
	DecisionRejected Decision = "REJECTED"
)

// ParseDecision validates a raw decision value.
func ParseDecision(raw string) (Decision, error) {
	switch Decision(raw) {
	case DecisionApproved:
		return DecisionApproved, nil
	case DecisionRejected:
		return DecisionRejected, nil
	}
	return "", dErrors.Newf(dErrors.CodeBadRequest, "invalid decision %q", raw)
}

// Document is one stored upload.
type Document struct {
	Path        string `json:"path"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
	SHA256      string `json:"sha256"`
}

// DocumentBundle is the set of documents in a submission. Fields are explicit
// rather than an open-ended map so required-document checks are enforced by
// the type. Serialized JSON carries exactly the documents provided.
type DocumentBundle struct {
	Portrait    *Document `json:"portrait,omitempty"`
	SelfieVideo *Document `json:"selfie_video,omitempty"`
	IDFront     *Document `json:"id_front,omitempty"`
	IDBack      *Document `json:"id_back,omitempty"`
}

// requiredDocuments maps field name to presence, in validation order.
func (b DocumentBundle) required() []struct {
	name string
	doc  *Document
} {
	return []struct {
		name string
		doc  *Document
	}{
		{"portrait", b.Portrait},
		{"selfie_video", b.SelfieVideo},
		{"id_front", b.IDFront},
	}
}

// Validate fails when any required document is missing. IDBack is optional.
func (b DocumentBundle) Validate() error {
	for _, req := range b.required() {
		if req.doc == nil {
			return dErrors.Newf(dErrors.CodeBadRequest, "missing required document: %s", req.name)
		}
	}
	return nil
}

// Submission is one verification attempt.
type Submission struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Status      SubmissionStatus
	Documents   DocumentBundle
	Notes       string
	ReviewerID  *uuid.UUID
	ReviewNotes string
	SubmittedAt time.Time
	ReviewedAt  *time.Time
}
