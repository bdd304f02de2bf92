// Package broker holds the error taxonomy shared by the broker services,
// the HTTP layer and the client.
package broker

import "errors"

// Every failure surfaced by the broker wraps exactly one of these. Details are
// attached with fmt.Errorf("%w: ...") and matched with errors.Is.
var (
	// ErrInvalidArgument marks malformed or missing required fields.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotFound marks an identity without a stored credential.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized marks a missing or inactive token, or a credential the backend rejected.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrRateLimited marks backend quota exhaustion.
	ErrRateLimited = errors.New("rate limited")
	// ErrUnknown marks anything else.
	ErrUnknown = errors.New("unknown error")
)

// Kind returns the taxonomy sentinel err wraps, or ErrUnknown.
func Kind(err error) error {
	for _, kind := range []error{ErrInvalidArgument, ErrNotFound, ErrUnauthorized, ErrRateLimited, ErrUnknown} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return ErrUnknown
}

// RequiresNewCredential reports whether the caller should be asked for a
// replacement credential instead of resending.
func RequiresNewCredential(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrRateLimited)
}
