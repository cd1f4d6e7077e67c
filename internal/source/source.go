package source

import (
	"context"
	"errors"
	"fmt"

	"carbonalert/internal/models"
)

// Source fetches a point-in-time carbon-intensity reading for a region.
// Implementations do not retry; retry policy belongs to the scheduler.
type Source interface {
	Fetch(ctx context.Context, region models.Region) (*models.IntensityReading, error)
}

// FetchKind classifies fetch failures.
type FetchKind int

const (
	// KindTimeout covers network timeouts and an unavailable provider
	// (including an open circuit breaker).
	KindTimeout FetchKind = iota + 1

	// KindHTTPStatus is a non-2xx response; Status carries the code.
	KindHTTPStatus

	// KindMalformed is an unparseable or semantically empty payload,
	// including an error body from the provider.
	KindMalformed
)

func (k FetchKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindHTTPStatus:
		return "http_status"
	case KindMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// FetchError is a classified fetch failure. The scheduler recovers from
// every kind locally; none is ever fatal.
type FetchError struct {
	Kind   FetchKind
	Status int // HTTP status, set for KindHTTPStatus
	Err    error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case KindHTTPStatus:
		return fmt.Sprintf("fetch failed: unexpected status %d", e.Status)
	default:
		return fmt.Sprintf("fetch failed (%s): %v", e.Kind, e.Err)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// AsFetchError unwraps err into a FetchError if it is one.
func AsFetchError(err error) (*FetchError, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
