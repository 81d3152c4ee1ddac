package spatial

import (
	"math"

	"github.com/aukilabs/go-tooling/pkg/errors"
)

const (
	DefaultSize           = 16.0
	DefaultSubdivision    = 3
	DefaultSplitThreshold = 16
	DefaultMergeThreshold = 4
	DefaultDepth          = 8

	// maxInitialCells bounds the initial root size expressed in smallest
	// cells, leaving room on the lattice for the root to grow.
	maxInitialCells = 1 << 40
)

// Options configures an index. Zero fields are replaced by their defaults.
type Options struct {
	// The minimum corner of the initial root cell.
	Offset Vector3

	// The extent of the initial root cell on each axis. The root never
	// shrinks below this size.
	Size float64

	// The number of subdivisions per axis when a leaf splits. Must be odd so
	// that a grown root keeps the previous root as its centered child.
	Subdivision int

	// The number of items a leaf holds before it is subdivided.
	SplitThreshold int

	// The item count at or below which an internal cell is merged back into a
	// leaf. Must be lower than SplitThreshold.
	MergeThreshold int

	// The number of subdivision levels available below the initial root. It
	// defines the size of the smallest cell: Size / Subdivision^Depth.
	Depth int

	// Allows multiple entries with the same item and position.
	AllowDuplicates bool
}

func (o Options) withDefaults() Options {
	if o.Size == 0 {
		o.Size = DefaultSize
	}
	if o.Subdivision == 0 {
		o.Subdivision = DefaultSubdivision
	}
	if o.SplitThreshold == 0 {
		o.SplitThreshold = DefaultSplitThreshold
	}
	if o.MergeThreshold == 0 && o.SplitThreshold > DefaultMergeThreshold {
		o.MergeThreshold = DefaultMergeThreshold
	}
	if o.Depth == 0 {
		o.Depth = DefaultDepth
	}
	return o
}

func (o Options) validate() error {
	if !o.Offset.IsFinite() {
		return errors.New("offset is not finite").
			WithType(ErrTypeInvalidArgument).
			WithTag("offset", o.Offset)
	}

	if !isFinite(o.Size) || o.Size <= 0 {
		return errors.New("size must be a positive number").
			WithType(ErrTypeInvalidArgument).
			WithTag("size", o.Size)
	}

	if o.Subdivision < 3 || o.Subdivision%2 == 0 {
		return errors.New("subdivision must be an odd number greater than 1").
			WithType(ErrTypeInvalidArgument).
			WithTag("subdivision", o.Subdivision)
	}

	if o.SplitThreshold < 1 {
		return errors.New("split threshold must be positive").
			WithType(ErrTypeInvalidArgument).
			WithTag("split_threshold", o.SplitThreshold)
	}

	if o.MergeThreshold < 0 || o.MergeThreshold >= o.SplitThreshold {
		return errors.New("merge threshold must be in [0, split threshold)").
			WithType(ErrTypeInvalidArgument).
			WithTag("merge_threshold", o.MergeThreshold).
			WithTag("split_threshold", o.SplitThreshold)
	}

	if o.Depth < 1 {
		return errors.New("depth must be positive").
			WithType(ErrTypeInvalidArgument).
			WithTag("depth", o.Depth)
	}

	if _, ok := cellsPerAxis(o.Subdivision, o.Depth); !ok {
		return errors.New("depth is too large for the subdivision").
			WithType(ErrTypeInvalidArgument).
			WithTag("depth", o.Depth).
			WithTag("subdivision", o.Subdivision)
	}
	return nil
}

// cellsPerAxis returns subdivision^depth.
func cellsPerAxis(subdivision, depth int) (int64, bool) {
	n := int64(1)
	for i := 0; i < depth; i++ {
		n *= int64(subdivision)
		if n > maxInitialCells {
			return 0, false
		}
	}
	return n, true
}

// latticeUnit returns the smallest power of two u such that an initial root
// made of n units covers [offset, offset+size) once its minimum corner is
// snapped down to a multiple of u.
func latticeUnit(size float64, n int64) float64 {
	_, exp := math.Frexp(size / float64(n-1))
	unit := math.Ldexp(1, exp)
	for unit/2*float64(n-1) >= size {
		unit /= 2
	}
	for unit*float64(n-1) < size {
		unit *= 2
	}
	return unit
}
