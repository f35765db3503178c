package health

import "errors"

var (
	// ErrProbeFailed indicates the liveness endpoint answered with a non-2xx status.
	ErrProbeFailed = errors.New("health: probe failed")

	// ErrProbeTimeout indicates the probe did not finish within the tracker timeout.
	ErrProbeTimeout = errors.New("health: probe timeout")

	// ErrNoConnectivity indicates the platform reported no usable network.
	ErrNoConnectivity = errors.New("health: no network connectivity")

	// ErrNoProbers indicates an aggregate prober has nothing registered.
	ErrNoProbers = errors.New("health: no probers registered")
)
