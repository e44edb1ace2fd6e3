package crystal

import "fmt"

// A single structure factor entry used for table construction.
type Entry struct {
	Index     MillerIndex
	Amplitude complex128
}

// Options controlling structure factor lookup behavior.
type TableOptions struct {
	// Amplitude returned for indices absent from the table.
	Default complex128

	// When set, indices outside the table's hkl bounding box are clamped
	// into it per axis before lookup. Indices inside the box that have no
	// tabulated entry still resolve to the default amplitude.
	ClampToBounds bool
}

// Table maps Miller indices to complex scattering amplitudes. It is
// immutable after construction and safe for unsynchronized concurrent reads.
type Table struct {
	amps     map[MillerIndex]complex128
	opts     TableOptions
	min, max MillerIndex
}

// Build a structure factor table from a list of entries. The entry order is
// irrelevant; two tables built from permutations of the same list are
// identical. Listing the same index twice is only an error when the
// amplitudes conflict.
func NewTable(entries []Entry, opts TableOptions) (*Table, error) {
	if len(entries) == 0 {
		return nil, ErrNoStructureFactors
	}

	t := &Table{
		amps: make(map[MillerIndex]complex128, len(entries)),
		opts: opts,
	}

	first := true
	for _, e := range entries {
		if prev, exists := t.amps[e.Index]; exists {
			if prev != e.Amplitude {
				return nil, fmt.Errorf("%w: %s has both %v and %v", ErrDuplicateIndex, e.Index, prev, e.Amplitude)
			}
			continue
		}
		t.amps[e.Index] = e.Amplitude

		if first {
			t.min, t.max = e.Index, e.Index
			first = false
			continue
		}
		t.min.H = min(t.min.H, e.Index.H)
		t.min.K = min(t.min.K, e.Index.K)
		t.min.L = min(t.min.L, e.Index.L)
		t.max.H = max(t.max.H, e.Index.H)
		t.max.K = max(t.max.K, e.Index.K)
		t.max.L = max(t.max.L, e.Index.L)
	}

	return t, nil
}

// Number of tabulated amplitudes.
func (t *Table) Len() int {
	return len(t.amps)
}

// The inclusive hkl bounding box of the tabulated entries.
func (t *Table) Bounds() (MillerIndex, MillerIndex) {
	return t.min, t.max
}

// The amplitude returned for indices absent from the table.
func (t *Table) Default() complex128 {
	return t.opts.Default
}

// Whether out-of-bounds lookups clamp into the table bounds.
func (t *Table) ClampsToBounds() bool {
	return t.opts.ClampToBounds
}

// Look up the amplitude for a Miller index. Absent indices resolve to the
// configured default; in clamp mode, out-of-bounds indices are first clamped
// into the table bounds per axis.
func (t *Table) Lookup(idx MillerIndex) complex128 {
	if t.opts.ClampToBounds {
		idx = t.clamp(idx)
	}
	if amp, ok := t.amps[idx]; ok {
		return amp
	}
	return t.opts.Default
}

func (t *Table) clamp(idx MillerIndex) MillerIndex {
	idx.H = min(max(idx.H, t.min.H), t.max.H)
	idx.K = min(max(idx.K, t.min.K), t.max.K)
	idx.L = min(max(idx.L, t.min.L), t.max.L)
	return idx
}

// Export the table as a dense grid covering its bounding box, with the real
// and imaginary amplitude parts interleaved. Holes are filled with the
// default amplitude. The grid is laid out h-major, then k, then l, which is
// the layout the accelerator kernel indexes.
func (t *Table) DenseGrid() (grid []float64, min, max MillerIndex) {
	nh := t.max.H - t.min.H + 1
	nk := t.max.K - t.min.K + 1
	nl := t.max.L - t.min.L + 1

	grid = make([]float64, nh*nk*nl*2)
	for i := 0; i < len(grid); i += 2 {
		grid[i] = real(t.opts.Default)
		grid[i+1] = imag(t.opts.Default)
	}

	for idx, amp := range t.amps {
		cell := ((idx.H-t.min.H)*nk+(idx.K-t.min.K))*nl + (idx.L - t.min.L)
		grid[cell*2] = real(amp)
		grid[cell*2+1] = imag(amp)
	}

	return grid, t.min, t.max
}
