package scraper

import (
	"context"
	"errors"
	"net"
	"net/http"
	"testing"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		statusCode int
		expected   string
	}{
		{name: "context timeout", err: context.DeadlineExceeded, expected: "timeout"},
		{name: "context canceled", err: context.Canceled, expected: "canceled"},
		{name: "net timeout", err: &net.DNSError{IsTimeout: true}, expected: "timeout"},
		{name: "connection", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, expected: "connection"},
		{name: "forbidden", statusCode: http.StatusForbidden, expected: "forbidden"},
		{name: "not found", statusCode: http.StatusNotFound, expected: "not_found"},
		{name: "rate limited", err: errors.New("Too Many Requests"), statusCode: http.StatusTooManyRequests, expected: "rate_limited"},
		{name: "server error", err: errors.New("Bad Gateway"), statusCode: http.StatusBadGateway, expected: "http_status"},
		{name: "other", err: errors.New("some other error"), expected: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorKind(classifyError(tt.err, tt.statusCode)).String(); got != tt.expected {
				t.Fatalf("classifyError(%v, %d) = %q, want %q", tt.err, tt.statusCode, got, tt.expected)
			}
		})
	}
}

func TestClassifyErrorSuccess(t *testing.T) {
	if err := classifyError(nil, http.StatusOK); err != nil {
		t.Fatalf("expected nil for 200, got %v", err)
	}
}

func TestFetchErrorUnwrapsFinalError(t *testing.T) {
	final := errors.New("boom")
	err := &FetchError{Source: "Mega", URL: "http://example.test", Attempts: 3, Err: final}
	if !errors.Is(err, final) {
		t.Fatalf("FetchError should unwrap to the final attempt error")
	}
}
