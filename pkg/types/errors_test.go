/*
SPDX-FileCopyrightText: 2026 SAP SE or an SAP affiliate company and component-operator-runtime contributors
SPDX-License-Identifier: Apache-2.0
*/

package types

import (
	"errors"
	"testing"
	"time"
)

func TestReconcileErrorRequeuePolicy(t *testing.T) {
	tests := []struct {
		kind        ReconcileErrorKind
		wantRequeue bool
		wantBackoff bool
	}{
		{ConfigError, false, false},
		{ClusterError, true, true},
		{PreconditionError, true, false},
		{VerificationError, true, false},
		{RolloutError, true, false},
		{Errored, true, false},
	}
	for _, tt := range tests {
		e := NewReconcileError(tt.kind, errors.New("boom"))
		requeue, backoff := e.Requeue()
		if requeue != tt.wantRequeue || backoff != tt.wantBackoff {
			t.Errorf("%s.Requeue() = (%v, %v), want (%v, %v)", tt.kind, requeue, backoff, tt.wantRequeue, tt.wantBackoff)
		}
		if e.Reason() != string(tt.kind) {
			t.Errorf("%s.Reason() = %q, want %q", tt.kind, e.Reason(), string(tt.kind))
		}
	}
}

func TestReconcileErrorUnwrapAndCause(t *testing.T) {
	cause := errors.New("root cause")
	e := NewReconcileError(ClusterError, cause)
	if e.Error() != cause.Error() {
		t.Errorf("Error() = %q, want %q", e.Error(), cause.Error())
	}
	if !errors.Is(e, cause) {
		t.Errorf("errors.Is(e, cause) = false, want true (Unwrap must expose cause)")
	}
	if e.Cause() != cause {
		t.Errorf("Cause() did not return the wrapped error")
	}
}

func TestRetriableErrorRetryAfter(t *testing.T) {
	cause := errors.New("transient")
	delay := 5 * time.Second
	e := NewRetriableError(cause, &delay)
	if e.Error() != cause.Error() {
		t.Errorf("Error() = %q, want %q", e.Error(), cause.Error())
	}
	if e.RetryAfter() == nil || *e.RetryAfter() != delay {
		t.Errorf("RetryAfter() = %v, want %v", e.RetryAfter(), delay)
	}
	noDelay := NewRetriableError(cause, nil)
	if noDelay.RetryAfter() != nil {
		t.Errorf("RetryAfter() = %v, want nil", noDelay.RetryAfter())
	}
}
