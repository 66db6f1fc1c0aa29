package solver

import "errors"

// ErrTooManyCombinations is returned when the search space exceeds the configured combination limit.
var ErrTooManyCombinations = errors.New("too many combinations")
