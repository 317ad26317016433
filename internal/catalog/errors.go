package catalog

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedTimestamp marks a record whose required start time (or,
	// for hackathons, end time) is missing or cannot be parsed.
	ErrMalformedTimestamp = errors.New("malformed timestamp")

	// ErrMalformedRecord marks a record that has no usable id or carries a
	// stored status the engine does not recognise.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrCatalogFetchFailed is returned when the required catalog fetch
	// fails. No items accompany it.
	ErrCatalogFetchFailed = errors.New("catalog fetch failed")

	// ErrRegistrationUnavailable is produced by the registration fetch and
	// always absorbed into an empty index.
	ErrRegistrationUnavailable = errors.New("registrations unavailable")

	ErrSessionClosed = errors.New("session closed")
)

func catalogFailure(err error) error {
	return fmt.Errorf("%w: %w", ErrCatalogFetchFailed, err)
}
