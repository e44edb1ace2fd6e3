package sim

import "math"

// The BlockScheduler interface is implemented by all block scheduling
// algorithms. Schedulers split the detector surface into horizontal bands
// and assign one band per attached backend.
type BlockScheduler interface {
	// Split rows into blocks of variable height and assign them to the
	// pool of backends. Returns the block height assignment for each
	// backend in the input list; assignments always sum to rows.
	Schedule(backends []Backend, rows uint32) []uint32
}

// The naive scheduler splits rows proportionally to each backend's static
// speed estimate.
type naiveScheduler struct{}

// Create a naive scheduler instance.
func NaiveScheduler() BlockScheduler {
	return &naiveScheduler{}
}

func (sch *naiveScheduler) Schedule(backends []Backend, rows uint32) []uint32 {
	assignment := make([]uint32, len(backends))

	var total float64
	for _, b := range backends {
		total += float64(b.Speed())
	}
	scaler := float64(rows) / total

	var scheduled uint32
	for idx, b := range backends {
		assignment[idx] = uint32(math.Max(1.0, math.Floor(float64(b.Speed())*scaler)))
		scheduled += assignment[idx]
	}

	// In case rows don't add up append the missing ones to the first backend.
	// The minimum block height of 1 can also oversubscribe a short frame;
	// trim the surplus from the tail so the sum never exceeds rows.
	trimSurplus(assignment, &scheduled, rows)
	assignment[0] += rows - scheduled

	return assignment
}

func trimSurplus(assignment []uint32, scheduled *uint32, rows uint32) {
	for idx := len(assignment) - 1; idx >= 0 && *scheduled > rows; idx-- {
		over := min(assignment[idx], *scheduled-rows)
		assignment[idx] -= over
		*scheduled -= over
	}
}

// The perfect scheduler assumes that the volume of integration work between
// two subsequent runs is approximately the same and uses the per-block
// timings from the previous run as feedback.
type perfectScheduler struct {
	assignment []uint32
}

// Create a perfect scheduler instance.
func PerfectScheduler() BlockScheduler {
	return &perfectScheduler{}
}

func (sch *perfectScheduler) Schedule(backends []Backend, rows uint32) []uint32 {
	// The first schedule, or a change in the backend pool, falls back to
	// the static speed estimates.
	if len(sch.assignment) != len(backends) {
		sch.assignment = NaiveScheduler().Schedule(backends, rows)
		return sch.assignment
	}

	var total float64
	for _, b := range backends {
		stats := b.Stats()
		total += float64(stats.BlockH) / float64(stats.RenderTime)
	}

	scaler := float64(rows) / total
	var scheduled uint32
	for idx, b := range backends {
		stats := b.Stats()
		sch.assignment[idx] = uint32(math.Max(1.0, math.Floor(float64(stats.BlockH)/float64(stats.RenderTime)*scaler)))
		scheduled += sch.assignment[idx]
	}

	trimSurplus(sch.assignment, &scheduled, rows)
	sch.assignment[0] += rows - scheduled

	return sch.assignment
}
