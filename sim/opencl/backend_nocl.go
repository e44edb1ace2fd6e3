//go:build !cl

package opencl

import (
	"fmt"

	"laue/sim"
)

// Create an accelerator backend. This build was compiled without the "cl"
// tag, so no accelerator is available and callers fall back to the
// reference backend.
func NewBackend(precision sim.Precision) (sim.Backend, error) {
	return nil, fmt.Errorf("%w: binary built without opencl support", sim.ErrBackendUnavailable)
}

// Factory wraps NewBackend for simulator construction.
func Factory(precision sim.Precision) sim.BackendFactory {
	return func() (sim.Backend, error) {
		return NewBackend(precision)
	}
}

// Get information about the available OpenCL platforms and devices.
func GetPlatformInfo() ([]PlatformInfo, error) {
	return nil, fmt.Errorf("%w: binary built without opencl support", sim.ErrBackendUnavailable)
}
