// Package outbox implements post-commit best-effort notifications. Domain
// services enqueue events inside their transaction; a worker publishes
// committed rows to Kafka. Delivery is at-most-once: a row is marked
// published when handed to the publisher, and publish failures are logged,
// not retried.
package outbox

import (
	"time"

	"github.com/google/uuid"
)

// Event types published on the KYC topic.
const (
	EventKYCSubmitted     = "kyc.submitted"
	EventKYCApproved      = "kyc.approved"
	EventKYCRejected      = "kyc.rejected"
	EventRiskLevelChanged = "risk.level_changed"
	EventAccountLocked    = "account.locked"
)

// Event is one outbox row. Payload is the JSON document consumers receive.
type Event struct {
	ID          uuid.UUID
	EventType   string
	UserID      uuid.UUID
	Payload     []byte
	CreatedAt   time.Time
	PublishedAt *time.Time
}
