package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestClassifyStatusCodes(t *testing.T) {
	cases := []struct {
		status int
		want   ErrorKind
	}{
		{http.StatusUnauthorized, KindAuthOrQuota},
		{http.StatusForbidden, KindAuthOrQuota},
		{http.StatusTooManyRequests, KindAuthOrQuota},
		{http.StatusPaymentRequired, KindAuthOrQuota},
		{http.StatusInternalServerError, KindTransport},
		{http.StatusBadGateway, KindTransport},
		{http.StatusBadRequest, KindUnknown},
	}
	for _, tc := range cases {
		if got := classify(tc.status, nil); got != tc.want {
			t.Errorf("classify(%d) = %s, want %s", tc.status, got, tc.want)
		}
	}
}

func TestClassifyDeadlineExceeded(t *testing.T) {
	if got := classify(0, context.DeadlineExceeded); got != KindTimeout {
		t.Errorf("classify(deadline) = %s, want %s", got, KindTimeout)
	}
	wrapped := fmt.Errorf("request failed: %w", context.DeadlineExceeded)
	if got := classify(0, wrapped); got != KindTimeout {
		t.Errorf("classify(wrapped deadline) = %s, want %s", got, KindTimeout)
	}
}

func TestShouldDisableOnlyAuthOrQuota(t *testing.T) {
	kinds := []ErrorKind{KindTimeout, KindMalformedResponse, KindTransport, KindUnknown}
	for _, k := range kinds {
		e := &InvocationError{Provider: "p", Kind: k}
		if e.ShouldDisable() {
			t.Errorf("kind %s should not disable the provider", k)
		}
	}
	e := &InvocationError{Provider: "p", Kind: KindAuthOrQuota}
	if !e.ShouldDisable() {
		t.Error("auth/quota failure should disable the provider")
	}
}

func TestKindOfUnwraps(t *testing.T) {
	inner := &InvocationError{Provider: "groq", Kind: KindTransport, Err: errors.New("boom")}
	wrapped := fmt.Errorf("attempt 1: %w", inner)

	if got := KindOf(wrapped); got != KindTransport {
		t.Errorf("KindOf(wrapped) = %s, want %s", got, KindTransport)
	}
	if got := KindOf(errors.New("plain")); got != KindUnknown {
		t.Errorf("KindOf(plain) = %s, want %s", got, KindUnknown)
	}
}

func TestInvocationErrorMessage(t *testing.T) {
	e := &InvocationError{Provider: "cohere", Kind: KindTimeout, Err: context.DeadlineExceeded}
	msg := e.Error()
	if msg == "" || !errors.Is(e, context.DeadlineExceeded) {
		t.Errorf("error chain broken: %q", msg)
	}
}
