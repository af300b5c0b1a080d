package common

import "errors"

// ErrIncorrectLookupParameters is returned whenever request parameters cannot
// be applied as filters. The cause is deliberately not wrapped.
var ErrIncorrectLookupParameters = errors.New("incorrect lookup parameters")

// ErrNotFound is returned when no row has the requested primary key.
var ErrNotFound = errors.New("not found")

// IsIncorrectLookup reports whether err is (or wraps) ErrIncorrectLookupParameters.
func IsIncorrectLookup(err error) bool {
	return errors.Is(err, ErrIncorrectLookupParameters)
}
