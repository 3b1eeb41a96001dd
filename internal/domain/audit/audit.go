// Package audit defines the append-only workflow trace entry.
package audit

import (
	"time"

	"github.com/careflow-io/careflow/internal/domain/request"
)

// Entry records one workflow transition or decision for a request.
// Entries are append-only and never updated or deleted.
type Entry struct {
	RequestID string        `json:"request_id"`
	Seq       int           `json:"seq"`
	FromState request.State `json:"from_state"`
	ToState   request.State `json:"to_state"`
	Detail    string        `json:"detail,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}
