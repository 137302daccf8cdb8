package matcher

import "errors"

var (
	// ErrInvalidArgument is returned for requests rejected before encoding, such as a
	// non-positive match count or a missing profile.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrMalformedQuery is returned when a profile carries no usable schema attribute.
	ErrMalformedQuery = errors.New("malformed query: profile has no usable attributes")
	// ErrIndexUnavailable is returned when no reference index is loaded or the loaded
	// index is inconsistent with the model.
	ErrIndexUnavailable = errors.New("reference index unavailable")
)
