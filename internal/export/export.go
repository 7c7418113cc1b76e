// Package export writes decoded records in a chosen output format.
package export

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"rosdecode/pkg/ctout"
	"rosdecode/pkg/tlout"
)

// Format names an output format.
type Format string

const (
	FormatJSON Format = "json"
	FormatCBOR Format = "cbor"
	FormatText Format = "text"
)

// ParseFormat parses a format name. The empty string yields "".
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatJSON, FormatCBOR, FormatText:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q (want json, cbor or text)", s)
}

// DefaultFormat picks text for terminals and JSON lines for everything else.
func DefaultFormat(out io.Writer) Format {
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return FormatText
	}
	return FormatJSON
}

// RecordWriter writes decoded records. Implementations buffer; Flush must be
// called after the last record.
type RecordWriter interface {
	WriteTimeline(rec *tlout.Record) error
	WriteContact(rec ctout.Record) error
	Flush() error
}

// New returns a RecordWriter for the given format writing to out. An empty
// format is resolved with DefaultFormat.
func New(format Format, out io.Writer) (RecordWriter, error) {
	if format == "" {
		format = DefaultFormat(out)
	}
	switch format {
	case FormatJSON:
		return newJSONWriter(out), nil
	case FormatCBOR:
		return newCBORWriter(out)
	case FormatText:
		return newTextWriter(out), nil
	}
	return nil, fmt.Errorf("unknown output format %q", format)
}

// Timeline is the serialized form of a tlout record.
type Timeline struct {
	Index            int        `json:"index" cbor:"1,keyasint"`
	Layout           string     `json:"layout" cbor:"2,keyasint"`
	Bins             int        `json:"bins" cbor:"3,keyasint"`
	T0Index          uint32     `json:"t0_index" cbor:"4,keyasint"`
	Extinct          bool       `json:"extinct" cbor:"5,keyasint"`
	MaxedOutPeriod   *int32     `json:"maxed_out_period,omitempty" cbor:"6,keyasint,omitempty"`
	ExtinctionPeriod *int32     `json:"extinction_period,omitempty" cbor:"7,keyasint,omitempty"`
	Timelines        [][]uint32 `json:"timelines" cbor:"8,keyasint"`
}

// NewTimeline converts a decoded record to its serialized form. The periods
// are only set for layouts that carry them.
func NewTimeline(rec *tlout.Record) Timeline {
	t := Timeline{
		Index:     rec.Index,
		Layout:    rec.Variant.Layout.String(),
		Bins:      rec.BinCount(),
		T0Index:   rec.T0Index,
		Extinct:   rec.WentExtinct(),
		Timelines: rec.Timelines,
	}
	if rec.Variant.Layout.HasPeriods() {
		maxed, extinction := rec.MaxedOutPeriod, rec.ExtinctionPeriod
		t.MaxedOutPeriod = &maxed
		t.ExtinctionPeriod = &extinction
	}
	return t
}
