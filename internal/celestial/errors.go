package celestial

import "errors"

// Failure taxonomy. Providers and the extractor report these as return
// values, never as panics across their boundary.
var (
	// ErrProviderUnavailable covers transport failures and non-success
	// HTTP statuses from any external provider.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrSchemaMismatch means well-formed JSON whose shape does not match
	// the expected schema.
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrUnparseableText means no balanced JSON structure was found in
	// generative output.
	ErrUnparseableText = errors.New("unparseable text")

	// ErrPermissionDenied means the geolocation grant was refused or absent.
	ErrPermissionDenied = errors.New("location permission denied")

	// ErrValidationRejected covers inputs rejected before any network call,
	// such as an image-of-day request for today or an upcoming event dated
	// in the past.
	ErrValidationRejected = errors.New("validation rejected")

	// ErrSuperseded means a query result arrived after a newer query had
	// already started; the stale result is discarded.
	ErrSuperseded = errors.New("query superseded")
)
