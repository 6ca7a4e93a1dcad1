package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
)

func TestIsTransient_ExplicitTransientError(t *testing.T) {
	err := NewTransientError(errors.New("server overloaded"), 503)
	if !IsTransient(err) {
		t.Error("expected TransientError to be transient")
	}
}

func TestIsTransient_WrappedTransientError(t *testing.T) {
	inner := NewTransientError(errors.New("rate limited"), 429)
	wrapped := fmt.Errorf("api call failed: %w", inner)
	if !IsTransient(wrapped) {
		t.Error("expected wrapped TransientError to be transient")
	}
}

func TestIsTransient_DeadlineExceeded(t *testing.T) {
	err := fmt.Errorf("research call: %w", context.DeadlineExceeded)
	if !IsTransient(err) {
		t.Error("expected deadline exceeded to be transient")
	}
}

func TestIsTransient_NetworkTimeout(t *testing.T) {
	err := &net.DNSError{Err: "timed out", IsTimeout: true}
	if !IsTransient(err) {
		t.Error("expected network timeout to be transient")
	}
}

func TestIsTransient_ConnectionErrors(t *testing.T) {
	for _, errno := range []syscall.Errno{
		syscall.ECONNRESET,
		syscall.ECONNREFUSED,
		syscall.ECONNABORTED,
	} {
		if !IsTransient(fmt.Errorf("dial: %w", errno)) {
			t.Errorf("expected %v to be transient", errno)
		}
	}
}

func TestIsTransient_MessageFallback(t *testing.T) {
	// Errors that cross a client boundary as plain strings.
	for _, msg := range []string{
		"read tcp 10.0.0.1:443: connection reset by peer",
		"write: broken pipe",
		"lookup api.perplexity.ai: no such host",
		"net/http: TLS handshake timeout",
	} {
		if !IsTransient(errors.New(msg)) {
			t.Errorf("expected %q to be transient", msg)
		}
	}
}

func TestIsTransient_PermanentErrors(t *testing.T) {
	for _, err := range []error{
		nil,
		errors.New("invalid request"),
		errors.New("missing personalized_sentence field"),
		context.Canceled,
	} {
		if IsTransient(err) {
			t.Errorf("expected %v to be permanent", err)
		}
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	transient := []int{408, 429, 500, 502, 503, 504}
	for _, code := range transient {
		if !IsTransientHTTPStatus(code) {
			t.Errorf("expected %d to be transient", code)
		}
	}
	for _, code := range []int{200, 201, 400, 401, 403, 404, 422} {
		if IsTransientHTTPStatus(code) {
			t.Errorf("expected %d to be permanent", code)
		}
	}
}

func TestRetryAll(t *testing.T) {
	if !RetryAll(errors.New("anything")) {
		t.Error("expected RetryAll to retry everything")
	}
	if !RetryAll(nil) {
		t.Error("expected RetryAll to ignore the error entirely")
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	inner := errors.New("upstream 503")
	err := NewTransientError(inner, 503)
	if !errors.Is(err, inner) {
		t.Error("expected TransientError to unwrap to the inner error")
	}
	if err.Error() != inner.Error() {
		t.Errorf("expected message passthrough, got %q", err.Error())
	}
}
