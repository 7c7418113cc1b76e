package tlout

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// fileBuilder writes tlout files for tests. The decoder has no encoder; this
// mirrors the simulator's writer closely enough to exercise every layout.
type fileBuilder struct {
	t       *testing.T
	variant Variant
	buf     bytes.Buffer
}

func newFileBuilder(t *testing.T, rev Revision, periods uint32, flags uint8) *fileBuilder {
	t.Helper()
	b := &fileBuilder{t: t, variant: NewHeader(periods, flags).Variant(rev)}
	b.u32(periods)
	b.buf.WriteByte(flags)
	return b
}

func (b *fileBuilder) u32(v uint32) {
	_ = binary.Write(&b.buf, binary.LittleEndian, v)
}

func (b *fileBuilder) i32(v int32) {
	_ = binary.Write(&b.buf, binary.LittleEndian, v)
}

// record appends one record. Timelines must match the variant.
func (b *fileBuilder) record(rec Record) *fileBuilder {
	b.t.Helper()
	if len(rec.Timelines) != b.variant.SubTimelines {
		b.t.Fatalf("record has %d timelines, layout %s needs %d", len(rec.Timelines), b.variant.Layout, b.variant.SubTimelines)
	}
	bins := len(rec.Timelines[0])
	b.u32(uint32(bins))
	switch b.variant.Layout {
	case LayoutV1Relative:
		b.u32(rec.T0Index)
		b.buf.WriteByte(rec.Extinct)
	case LayoutV1Absolute:
		b.buf.WriteByte(rec.Extinct)
	case LayoutV2Relative:
		b.u32(rec.T0Index)
		b.i32(rec.MaxedOutPeriod)
		b.i32(rec.ExtinctionPeriod)
	case LayoutV2Absolute:
		b.i32(rec.MaxedOutPeriod)
		b.i32(rec.ExtinctionPeriod)
	}
	for _, tl := range rec.Timelines {
		if len(tl) != bins {
			b.t.Fatalf("timelines of unequal length %d and %d", len(tl), bins)
		}
		for _, v := range tl {
			b.u32(v)
		}
	}
	return b
}

// raw appends arbitrary bytes, for corruption tests.
func (b *fileBuilder) raw(p ...byte) *fileBuilder {
	b.buf.Write(p)
	return b
}

func (b *fileBuilder) bytes() []byte {
	return append([]byte(nil), b.buf.Bytes()...)
}

func (b *fileBuilder) reader() *bytes.Reader {
	return bytes.NewReader(b.bytes())
}

// timelines builds n timelines of bins values each, numbered from start.
func timelines(n, bins int, start uint32) [][]uint32 {
	out := make([][]uint32, n)
	v := start
	for i := range out {
		out[i] = make([]uint32, bins)
		for j := range out[i] {
			out[i][j] = v
			v++
		}
	}
	return out
}
