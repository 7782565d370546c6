package trust

import "errors"

// Domain-specific errors for trust building.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrPermissionDenied is returned when the process can no longer read the
	// certificate source. Callers fall back to system trust.
	ErrPermissionDenied = errors.New("trust: no permission to read certificate")

	// ErrMalformedCertificate is returned when the source does not hold a
	// parseable X.509 certificate.
	ErrMalformedCertificate = errors.New("trust: malformed certificate")

	// ErrSourceUnavailable is returned when the source passes the permission
	// check but cannot be opened or read.
	ErrSourceUnavailable = errors.New("trust: certificate source unavailable")
)
