// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrCustomerMismatch indicates an order exists but belongs to a different customer.
var ErrCustomerMismatch = errors.New("order does not belong to customer")

// ErrUnavailable indicates a transient failure of an external collaborator.
// Calls failing with this error are retried; other failures are not.
var ErrUnavailable = errors.New("service unavailable")

// ErrAlreadyClaimed indicates a case was claimed by another agent first.
var ErrAlreadyClaimed = errors.New("case already claimed")

// ErrInvalidTransition indicates a case state transition that violates the
// case lifecycle. This is a programming or ordering error and is never
// silently corrected.
var ErrInvalidTransition = errors.New("invalid case transition")

// ErrConflict indicates a concurrent modification conflict (optimistic locking).
var ErrConflict = errors.New("conflict: resource was modified by another request")
