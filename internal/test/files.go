// Package test contains helpers that build tlout and ctout files for tests
// in the internal packages.
package test

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"rosdecode/pkg/ctout"
	"rosdecode/pkg/tlout"
)

// Path is the content of one tlout record. Timelines must match the layout
// selected by the file's revision and flags.
type Path struct {
	Timelines        [][]uint32
	T0Index          uint32
	Extinct          uint8
	MaxedOutPeriod   int32
	ExtinctionPeriod int32
}

// TloutBytes encodes a tlout file.
func TloutBytes(t testing.TB, rev tlout.Revision, periods uint32, flags uint8, paths ...Path) []byte {
	t.Helper()
	v := tlout.NewHeader(periods, flags).Variant(rev)

	var buf bytes.Buffer
	le := binary.LittleEndian
	_ = binary.Write(&buf, le, periods)
	buf.WriteByte(flags)
	for i, p := range paths {
		if len(p.Timelines) != v.SubTimelines {
			t.Fatalf("path %d: %d timelines, layout %s needs %d", i, len(p.Timelines), v.Layout, v.SubTimelines)
		}
		_ = binary.Write(&buf, le, uint32(len(p.Timelines[0])))
		switch v.Layout {
		case tlout.LayoutV1Relative:
			_ = binary.Write(&buf, le, p.T0Index)
			buf.WriteByte(p.Extinct)
		case tlout.LayoutV1Absolute:
			buf.WriteByte(p.Extinct)
		case tlout.LayoutV2Relative:
			_ = binary.Write(&buf, le, p.T0Index)
			_ = binary.Write(&buf, le, p.MaxedOutPeriod)
			_ = binary.Write(&buf, le, p.ExtinctionPeriod)
		case tlout.LayoutV2Absolute:
			_ = binary.Write(&buf, le, p.MaxedOutPeriod)
			_ = binary.Write(&buf, le, p.ExtinctionPeriod)
		}
		for _, tl := range p.Timelines {
			_ = binary.Write(&buf, le, tl)
		}
	}
	return buf.Bytes()
}

// CtoutBytes encodes ctout records. The revision only changes how IDs are
// interpreted, so one encoding serves both.
func CtoutBytes(records ...ctout.Record) []byte {
	var buf bytes.Buffer
	le := binary.LittleEndian
	for _, r := range records {
		_ = binary.Write(&buf, le, r.PositiveTestTime)
		_ = binary.Write(&buf, le, r.PresymptomaticDuration)
		_ = binary.Write(&buf, le, uint32(r.ChildID))
		_ = binary.Write(&buf, le, uint32(r.ParentID))
		_ = binary.Write(&buf, le, r.TracedContactCount)
	}
	return buf.Bytes()
}

// WriteFile writes data to name inside dir and returns the full path.
func WriteFile(t testing.TB, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatalf("writing %s: %v", p, err)
	}
	return p
}

// SamplePaths returns three v2 relative-time paths with positive tests
// (flags 0x0b): one extinct, one maxed out, one without initial infection.
func SamplePaths() []Path {
	return []Path{
		{
			Timelines:        [][]uint32{{1, 2, 1}, {1, 1, 0}, {0, 1, 0}},
			T0Index:          0,
			MaxedOutPeriod:   tlout.NoPeriod,
			ExtinctionPeriod: 3,
		},
		{
			Timelines:        [][]uint32{{1, 3, 5, 8}, {0, 1, 2, 3}, {0, 0, 1, 2}},
			T0Index:          1,
			MaxedOutPeriod:   3,
			ExtinctionPeriod: tlout.NoPeriod,
		},
		{
			Timelines:        [][]uint32{{0}, {0}, {0}},
			MaxedOutPeriod:   tlout.NoPeriod,
			ExtinctionPeriod: tlout.NoInitialInfection,
		},
	}
}

// SampleFlags are the mode flags matching SamplePaths.
const SampleFlags uint8 = 0x0b
