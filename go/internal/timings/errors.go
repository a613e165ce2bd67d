package timings

import "errors"

var (
	// ErrOutOfOrder is returned when present boundaries are not ascending.
	ErrOutOfOrder = errors.New("competition timings out of order")
	// ErrInvalidPeriod is returned for a non-positive auto-generation period.
	ErrInvalidPeriod = errors.New("period must be positive")
)
