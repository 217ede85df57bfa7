package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind labels a transport failure for logs and metrics. Retries treat every
// kind the same way.
type Kind int

const (
	KindOther Kind = iota
	KindTimeout
	KindConnection
	KindForbidden
	KindNotFound
	KindRateLimited
	KindStatus
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindConnection:
		return "connection"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindRateLimited:
		return "rate_limited"
	case KindStatus:
		return "http_status"
	case KindCanceled:
		return "canceled"
	default:
		return "other"
	}
}

// TransportError is a single failed attempt.
type TransportError struct {
	Kind       Kind
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// FetchError is returned once every attempt of a Fetch has failed. Err is the
// final attempt's error.
type FetchError struct {
	Source   string
	URL      string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s from %s failed after %d attempt(s): %v", e.URL, e.Source, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ErrorKind reports the kind of the first TransportError in err's chain.
func ErrorKind(err error) Kind {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Kind
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindOther
}

func classifyError(err error, statusCode int) error {
	if err == nil && statusCode < http.StatusBadRequest {
		return nil
	}
	if err == nil {
		err = fmt.Errorf("http status %d", statusCode)
	}

	switch {
	case errors.Is(err, context.Canceled):
		return &TransportError{Kind: KindCanceled, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &TransportError{Kind: KindTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TransportError{Kind: KindTimeout, Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &TransportError{Kind: KindConnection, Err: err}
	}

	switch {
	case statusCode == http.StatusForbidden:
		return &TransportError{Kind: KindForbidden, StatusCode: statusCode, Err: err}
	case statusCode == http.StatusNotFound:
		return &TransportError{Kind: KindNotFound, StatusCode: statusCode, Err: err}
	case statusCode == http.StatusTooManyRequests:
		return &TransportError{Kind: KindRateLimited, StatusCode: statusCode, Err: err}
	case statusCode != 0:
		return &TransportError{Kind: KindStatus, StatusCode: statusCode, Err: err}
	}
	return &TransportError{Kind: KindOther, Err: err}
}
