package ctout

import (
	"fmt"
	"strings"
)

// RecordSize is the size of one encoded record in bytes.
const RecordSize = 20

// MinutesPerPeriod converts record times to the simulator's day periods.
const MinutesPerPeriod = 1440

// Revision selects the record shape. ctout files do not record it.
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
	return 0, fmt.Errorf("unknown ctout revision %q (want v1 or v2)", s)
}

// Record is one contact tracing event. IDs are widened to int64 so that the
// unsigned revision 1 IDs and the signed revision 2 IDs both fit.
type Record struct {
	PositiveTestTime       int32  `json:"positive_test_time"`
	PresymptomaticDuration int32  `json:"presymptomatic_duration"`
	ChildID                int64  `json:"child_id"`
	ParentID               int64  `json:"parent_id"`
	TracedContactCount     uint32 `json:"traced_contact_count"`
	// Untraced is set for revision 2 records whose parent ID is the
	// negative "not interrupted by contact tracing" sentinel.
	Untraced bool `json:"untraced"`
}

// PositiveTestPeriod returns the day period of the positive test,
// floor(PositiveTestTime / 1440).
func (r Record) PositiveTestPeriod() int32 {
	p := r.PositiveTestTime / MinutesPerPeriod
	if r.PositiveTestTime%MinutesPerPeriod < 0 {
		p--
	}
	return p
}
