/*
SPDX-FileCopyrightText: 2024 SAP SE or an SAP affiliate company and component-operator-runtime contributors
SPDX-License-Identifier: Apache-2.0
*/

package types

import "time"

// ReconcileErrorKind is the finite failure taxonomy the engine classifies terminal errors into.
// Each kind has a fixed requeue policy; see ReconcileError.Requeue().
type ReconcileErrorKind string

const (
	// ConfigError indicates user input (CR, filter spec, leader config, ...) is invalid. No requeue by default.
	ConfigError ReconcileErrorKind = "ConfigError"
	// PreconditionError indicates a referenced external resource is missing. Requeue.
	PreconditionError ReconcileErrorKind = "PreconditionError"
	// VerificationError indicates a Component's verify predicate reported "not yet". Requeue.
	VerificationError ReconcileErrorKind = "VerificationError"
	// ClusterError indicates a non-404/409/422 transient API failure survived the adapter's own retries. Requeue with backoff.
	ClusterError ReconcileErrorKind = "ClusterError"
	// RolloutError indicates a Component's deploy failed definitively. Requeue.
	RolloutError ReconcileErrorKind = "RolloutError"
	// Errored is the catch-all for unclassified failures caught at the engine boundary. Requeue with caution.
	Errored ReconcileErrorKind = "Errored"
)

// ReconcileError is a taxonomy-tagged error produced by engine phases, Components, or Controller
// hooks. The engine never lets an error cross reconcile() unclassified: anything that is not
// already a ReconcileError is wrapped as Errored at the outer boundary.
type ReconcileError struct {
	kind ReconcileErrorKind
	err  error
}

// NewReconcileError tags err with kind.
func NewReconcileError(kind ReconcileErrorKind, err error) *ReconcileError {
	return &ReconcileError{kind: kind, err: err}
}

func (e *ReconcileError) Error() string { return e.err.Error() }
func (e *ReconcileError) Unwrap() error  { return e.err }
func (e *ReconcileError) Cause() error   { return e.err }
func (e *ReconcileError) Kind() ReconcileErrorKind { return e.kind }

// Requeue reports whether the engine should requeue after this error, and, for ClusterError,
// whether a backoff-scaled delay (rather than the immediate default) should be used.
func (e *ReconcileError) Requeue() (requeue bool, backoff bool) {
	switch e.kind {
	case ConfigError:
		return false, false
	case ClusterError:
		return true, true
	default:
		return true, false
	}
}

// Reason returns the canonical status-condition reason (§6) for this error kind.
func (e *ReconcileError) Reason() string {
	return string(e.kind)
}

type RetriableError struct {
	err        error
	retryAfter *time.Duration
}

func NewRetriableError(err error, retryAfter *time.Duration) RetriableError {
	return RetriableError{err: err, retryAfter: retryAfter}
}

func (e RetriableError) Error() string {
	return e.err.Error()
}

func (e RetriableError) Unwrap() error {
	return e.err
}

func (e RetriableError) Cause() error {
	return e.err
}

func (e RetriableError) RetryAfter() *time.Duration {
	return e.retryAfter
}
