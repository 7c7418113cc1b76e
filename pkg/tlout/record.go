package tlout

import "math"

const (
	// NoPeriod marks a maxed-out or extinction period that never occurred.
	NoPeriod int32 = math.MaxInt32
	// NoInitialInfection is the extinction period of a path that started
	// without any infectious individual.
	NoInitialInfection int32 = -math.MaxInt32
)

// TimelineKind is the quantity a timeline counts per bin.
type TimelineKind int

const (
	ActiveInfections TimelineKind = iota
	NewInfections
	NewPositiveTests
)

func (k TimelineKind) String() string {
	switch k {
	case ActiveInfections:
		return "active"
	case NewInfections:
		return "new"
	case NewPositiveTests:
		return "positive-tests"
	}
	return "unknown"
}

// Category selects the primary or the secondary infection category.
type Category int

const (
	Primary Category = iota
	Secondary
)

// Record is one decoded simulation path.
type Record struct {
	// Index is the 0-based position of the record in the file.
	Index int
	// Variant is the layout the record was decoded with.
	Variant Variant
	// Timelines holds Variant.SubTimelines slices of equal length, in file
	// order.
	Timelines [][]uint32
	// T0Index is the index of the bin corresponding to t=0; 0 when the
	// layout has no t0 index.
	T0Index uint32

	// Extinct is the raw extinction byte of revision 1 layouts.
	Extinct uint8
	// MaxedOutPeriod and ExtinctionPeriod are set by revision 2 layouts.
	MaxedOutPeriod   int32
	ExtinctionPeriod int32
}

// BinCount returns the number of bins in each timeline.
func (r *Record) BinCount() int {
	if len(r.Timelines) == 0 {
		return 0
	}
	return len(r.Timelines[0])
}

// Timeline returns the timeline of the given kind and category, or nil if
// the record does not carry it.
func (r *Record) Timeline(kind TimelineKind, cat Category) []uint32 {
	m := r.Variant.Multiplier
	if kind < 0 || int(kind) >= m {
		return nil
	}
	if cat == Secondary && !r.Variant.Split() {
		return nil
	}
	i := int(cat)*m + int(kind)
	if i >= len(r.Timelines) {
		return nil
	}
	return r.Timelines[i]
}

// WentExtinct reports whether the path went extinct.
func (r *Record) WentExtinct() bool {
	if r.Variant.Layout.HasPeriods() {
		return r.ExtinctionPeriod != NoPeriod && r.ExtinctionPeriod != NoInitialInfection
	}
	return r.Extinct != 0
}

// MaxedOut reports whether the path hit an infection or positive test cap.
// Revision 1 files do not record this and always report false.
func (r *Record) MaxedOut() bool {
	return r.Variant.Layout.HasPeriods() && r.MaxedOutPeriod != NoPeriod
}

// HadInitialInfection reports false only for revision 2 paths flagged as
// starting without any infection.
func (r *Record) HadInitialInfection() bool {
	return !r.Variant.Layout.HasPeriods() || r.ExtinctionPeriod != NoInitialInfection
}
