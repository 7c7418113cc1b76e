package tlout

import (
	"encoding/binary"
	"fmt"
	"io"

	"rosdecode/pkg/binread"
)

// HeaderSize is the size of the file header in bytes.
const HeaderSize = 5

const (
	timeOriginMask       = 0x07
	positiveTestsFlag    = 0x08
	secondaryCategoryBit = 0x10
)

// TimeOrigin is the reference point of the time axis, stored in the lower
// three bits of the mode flags.
type TimeOrigin uint8

const (
	OriginPrimaryCreated     TimeOrigin = 1
	OriginPrimaryFlatComm    TimeOrigin = 2
	OriginPrimaryInfectious  TimeOrigin = 3
	OriginPrimaryEndComm     TimeOrigin = 4
	OriginPrimaryTestResults TimeOrigin = 5
)

func (o TimeOrigin) String() string {
	switch o {
	case OriginPrimaryCreated:
		return "primary-created"
	case OriginPrimaryFlatComm:
		return "primary-flat-comm"
	case OriginPrimaryInfectious:
		return "primary-infectious"
	case OriginPrimaryEndComm:
		return "primary-end-comm"
	case OriginPrimaryTestResults:
		return "primary-test-results"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(o))
	}
}

// Header is the file header together with the booleans derived from its mode
// flags. The booleans are computed once by ReadHeader and never change.
type Header struct {
	PeriodCount uint32
	ModeFlags   uint8

	HasRelativeTime         bool
	ReportsPositiveTests    bool
	SplitsSecondaryCategory bool
}

// NewHeader derives a Header from raw field values.
func NewHeader(periodCount uint32, modeFlags uint8) Header {
	return Header{
		PeriodCount:             periodCount,
		ModeFlags:               modeFlags,
		HasRelativeTime:         modeFlags&timeOriginMask != uint8(OriginPrimaryCreated),
		ReportsPositiveTests:    modeFlags&positiveTestsFlag != 0,
		SplitsSecondaryCategory: modeFlags&secondaryCategoryBit != 0,
	}
}

// TimeOrigin returns the time origin encoded in the mode flags.
func (h Header) TimeOrigin() TimeOrigin {
	return TimeOrigin(h.ModeFlags & timeOriginMask)
}

// Variant returns the record layout used by files with this header under
// the given format revision.
func (h Header) Variant(rev Revision) Variant {
	return SelectVariant(rev, h.HasRelativeTime, h.ReportsPositiveTests, h.SplitsSecondaryCategory)
}

// ReadHeader reads the file header from the start of r.
func ReadHeader(r io.Reader) (Header, error) {
	return readHeader(binread.NewCursor(r))
}

func readHeader(c *binread.Cursor) (Header, error) {
	b, err := c.ReadExact(HeaderSize)
	if err != nil {
		return Header{}, fmt.Errorf("reading file header: %w", err)
	}
	return NewHeader(binary.LittleEndian.Uint32(b), b[4]), nil
}
