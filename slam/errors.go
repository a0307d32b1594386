package slam

import "github.com/pkg/errors"

var (
	// ErrMalformedMapInput reports ground-truth rasters that cannot back a map,
	// such as mismatched occupancy/distance dimensions. Fatal at load time.
	ErrMalformedMapInput = errors.New("malformed map input")

	// ErrExhaustedTrajectory signals the end of a recorded trajectory. It ends
	// a session normally.
	ErrExhaustedTrajectory = errors.New("trajectory exhausted")

	// ErrInvalidConfig wraps configuration validation failures.
	ErrInvalidConfig = errors.New("invalid configuration")
)
