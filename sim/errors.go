package sim

import "errors"

var (
	ErrNoBackends          = errors.New("sim: no execution backends attached")
	ErrBackendUnavailable  = errors.New("sim: requested execution backend is unavailable")
	ErrNumericalDivergence = errors.New("sim: numerical divergence during pixel integration")
	ErrInvalidOptions      = errors.New("sim: invalid simulation options")
	ErrMissingInput        = errors.New("sim: incomplete simulation inputs")
)
