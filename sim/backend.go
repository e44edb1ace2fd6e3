package sim

import (
	"time"

	"laue/crystal"
	"laue/geometry"
)

// Request bundles the immutable inputs for one simulation run together with
// the shared output buffer. The table, geometry and beam are read-only for
// the duration of the run and may be shared freely across workers; each
// backend owns a disjoint row range of the Pixels buffer, so there is no
// write contention by construction.
type Request struct {
	Table       *crystal.Table
	Detector    *geometry.Detector
	Beam        *geometry.Beam
	Orientation crystal.Orientation
	Opts        Options

	// Per-pixel intensities in row-major (slow, fast) order. Allocated by
	// the simulator before dispatch.
	Pixels []float64
}

// A unit of work processed by a backend: a horizontal band of detector
// rows [BlockY, BlockY+BlockH).
type BlockRequest struct {
	BlockY uint32
	BlockH uint32
}

// Backend statistics for the last processed block.
type Stats struct {
	// The processed block height.
	BlockH uint32

	// Time spent processing the block.
	RenderTime time.Duration
}

// A Backend executes the per-pixel integration over blocks of the detector
// surface. Implementations must produce intensities that agree with the
// reference backend within the documented tolerance when run in double
// precision.
type Backend interface {
	// Get backend id.
	Id() string

	// Get the backend's computation speed estimate relative to other
	// backends, used for block assignment.
	Speed() uint32

	// Prepare the backend for a run: derive sampling state from the
	// request and upload any device-resident copies of the inputs. The
	// request stays valid until Close is called.
	Init(req *Request) error

	// Integrate all pixels in the block and write them into the request's
	// pixel buffer.
	TraceBlock(blockReq BlockRequest) error

	// Retrieve last block statistics.
	Stats() *Stats

	// Shutdown and cleanup backend resources.
	Close()
}
