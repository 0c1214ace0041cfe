package regbloom

import (
	"errors"
)

// ErrValidation marks an invalid value supplied directly by a caller,
// e.g. an error rate outside (0, 1).
var ErrValidation = errors.New("validation error")

// ErrConfiguration marks an operation that requires state which has not
// been established yet: missing salts, missing error rate, or deriving a
// bitmask before the filter length is known.
var ErrConfiguration = errors.New("configuration error")
