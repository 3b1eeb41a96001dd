// Package messagequeue defines the port interface for the event bus.
package messagequeue

import "context"

// Subjects published by the engine.
const (
	SubjectRequestResolved  = "requests.resolved"
	SubjectRequestEscalated = "requests.escalated"
	SubjectCaseCreated      = "cases.created"
	SubjectCaseResolved     = "cases.resolved"
)

// Publisher sends events to the bus. Publish failures never fail the
// workflow; callers log and continue.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}
