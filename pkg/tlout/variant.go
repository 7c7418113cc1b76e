package tlout

import (
	"fmt"
	"strings"
)

// Revision selects which revision's record layouts are used. tlout files do
// not record their revision, so it must always be supplied by the caller.
type Revision uint8

const (
	V1 Revision = 1
	V2 Revision = 2
)

// Valid reports whether r is a known revision.
func (r Revision) Valid() bool {
	return r == V1 || r == V2
}

func (r Revision) String() string {
	if r.Valid() {
		return fmt.Sprintf("v%d", uint8(r))
	}
	return fmt.Sprintf("Revision(%d)", uint8(r))
}

// ParseRevision accepts "v1", "1", "v2" or "2".
func ParseRevision(s string) (Revision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "v1", "1":
		return V1, nil
	case "v2", "2":
		return V2, nil
	}
	return 0, fmt.Errorf("unknown tlout revision %q (want v1 or v2)", s)
}

// Layout identifies one of the record header shapes.
type Layout uint8

const (
	LayoutV1Relative Layout = iota + 1
	LayoutV1Absolute
	LayoutV2Relative
	LayoutV2Absolute
)

// HeaderSize is the encoded size of a record header with this layout.
func (l Layout) HeaderSize() int {
	switch l {
	case LayoutV1Relative:
		return 9
	case LayoutV1Absolute:
		return 5
	case LayoutV2Relative:
		return 16
	case LayoutV2Absolute:
		return 12
	}
	return 0
}

// HasT0Index reports whether record headers carry the t=0 bin index.
func (l Layout) HasT0Index() bool {
	return l == LayoutV1Relative || l == LayoutV2Relative
}

// HasPeriods reports whether record headers carry the maxed-out and
// extinction periods instead of a single extinction byte.
func (l Layout) HasPeriods() bool {
	return l == LayoutV2Relative || l == LayoutV2Absolute
}

func (l Layout) String() string {
	switch l {
	case LayoutV1Relative:
		return "v1-relative"
	case LayoutV1Absolute:
		return "v1-absolute"
	case LayoutV2Relative:
		return "v2-relative"
	case LayoutV2Absolute:
		return "v2-absolute"
	}
	return fmt.Sprintf("Layout(%d)", uint8(l))
}

// Variant is the complete record layout of a file: the header shape and how
// the payload splits into timelines.
type Variant struct {
	Layout Layout
	// Multiplier is the number of timelines per category: 2, or 3 when
	// positive test results are reported.
	Multiplier int
	// SubTimelines is the number of timelines in each payload. It is
	// Multiplier, or twice that when the secondary category is split out.
	SubTimelines int
}

// Split reports whether the payload carries the secondary category series.
func (v Variant) Split() bool {
	return v.SubTimelines == 2*v.Multiplier
}

// PayloadWords returns the number of u32 payload words for binCount bins.
func (v Variant) PayloadWords(binCount uint32) uint64 {
	return uint64(binCount) * uint64(v.SubTimelines)
}

// SelectVariant maps a revision and the header-derived booleans to a record
// layout. It has no error cases; rev is expected to be valid.
//
// Revision 2 only honors splitsSecondaryCategory for absolute-time files,
// matching the simulator's own reader.
func SelectVariant(rev Revision, hasRelativeTime, reportsPositiveTests, splitsSecondaryCategory bool) Variant {
	multiplier := 2
	if reportsPositiveTests {
		multiplier = 3
	}
	v := Variant{Multiplier: multiplier, SubTimelines: multiplier}

	switch {
	case rev == V1 && hasRelativeTime:
		v.Layout = LayoutV1Relative
	case rev == V1:
		v.Layout = LayoutV1Absolute
	case hasRelativeTime:
		v.Layout = LayoutV2Relative
	default:
		v.Layout = LayoutV2Absolute
		if splitsSecondaryCategory {
			v.SubTimelines = 2 * multiplier
		}
	}
	return v
}
