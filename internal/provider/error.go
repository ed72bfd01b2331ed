package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorKind classifies an invocation failure. The orchestrator uses the
// kind to decide whether to disable a provider before moving on.
type ErrorKind string

const (
	KindTimeout           ErrorKind = "timeout"
	KindAuthOrQuota       ErrorKind = "auth_or_quota_exceeded"
	KindMalformedResponse ErrorKind = "malformed_response"
	KindTransport         ErrorKind = "transport_error"
	KindUnknown           ErrorKind = "unknown"
)

// InvocationError is the normalized failure of a single provider call.
// Invokers never let a raw transport or vendor error escape; every failure
// crosses the Invoke boundary as one of these.
type InvocationError struct {
	Provider string
	Kind     ErrorKind
	Status   int
	Err      error
}

func (e *InvocationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Kind)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// ShouldDisable reports whether this failure should take the provider out
// of rotation until the next daily rollover. Only auth and vendor-quota
// failures qualify; transient errors keep the provider in the list.
func (e *InvocationError) ShouldDisable() bool {
	return e.Kind == KindAuthOrQuota
}

// newInvocationError classifies err for the named provider.
func newInvocationError(name string, status int, err error) *InvocationError {
	return &InvocationError{Provider: name, Kind: classify(status, err), Status: status, Err: err}
}

func classify(status int, err error) ErrorKind {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests, http.StatusPaymentRequired:
		return KindAuthOrQuota
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return KindTimeout
		}
		var netErr net.Error
		if errors.As(err, &netErr) {
			if netErr.Timeout() {
				return KindTimeout
			}
			return KindTransport
		}
	}
	if status >= 500 {
		return KindTransport
	}
	if status >= 400 {
		return KindUnknown
	}
	if err != nil {
		return KindUnknown
	}
	return KindUnknown
}

// KindOf extracts the ErrorKind from err, unwrapping as needed.
// Non-invocation errors report KindUnknown.
func KindOf(err error) ErrorKind {
	var ie *InvocationError
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return KindUnknown
}
