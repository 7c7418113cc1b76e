package tlout

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"rosdecode/pkg/binread"
)

func TestDecode_SingleRelativeRecord(t *testing.T) {
	input := []byte{
		// periodCount=5, modeFlags=0
		0x05, 0x00, 0x00, 0x00, 0x00,
		// binCount=2, t0Index=1, extinct=0
		0x02, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00,
		// payload words 1, 2, 3, 4
		0x01, 0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00,
		0x03, 0x00, 0x00, 0x00, 0x04, 0x00, 0x00, 0x00,
	}

	var got []*Record
	n, err := Decode(bytes.NewReader(input), V1, func(r *Record) error {
		got = append(got, r)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Len(t, got, 1)

	rec := got[0]
	require.Equal(t, [][]uint32{{1, 2}, {3, 4}}, rec.Timelines)
	require.Equal(t, uint32(1), rec.T0Index)
	require.Equal(t, uint8(0), rec.Extinct)
	require.False(t, rec.WentExtinct())
	require.Equal(t, 2, rec.BinCount())
	require.Equal(t, []uint32{1, 2}, rec.Timeline(ActiveInfections, Primary))
	require.Equal(t, []uint32{3, 4}, rec.Timeline(NewInfections, Primary))
	require.Nil(t, rec.Timeline(NewPositiveTests, Primary))
}

func TestDecode_RoundTripAllLayouts(t *testing.T) {
	tests := []struct {
		name  string
		rev   Revision
		flags uint8
	}{
		{"v1 relative", V1, 0x03},
		{"v1 relative tests", V1, 0x0b},
		{"v1 absolute", V1, 0x01},
		{"v1 absolute tests", V1, 0x09},
		{"v2 relative", V2, 0x05},
		{"v2 relative tests", V2, 0x0d},
		{"v2 absolute", V2, 0x01},
		{"v2 absolute tests", V2, 0x09},
		{"v2 absolute split", V2, 0x11},
		{"v2 absolute tests split", V2, 0x19},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newFileBuilder(t, tt.rev, 30, tt.flags)
			v := b.variant

			var want []Record
			for i, bins := range []int{1, 4, 7} {
				rec := Record{
					Index:     i,
					Variant:   v,
					Timelines: timelines(v.SubTimelines, bins, uint32(100*i)),
				}
				if v.Layout.HasT0Index() {
					rec.T0Index = uint32(bins / 2)
				}
				if v.Layout.HasPeriods() {
					rec.MaxedOutPeriod = NoPeriod
					rec.ExtinctionPeriod = int32(i*3 - 2)
				} else {
					rec.Extinct = uint8(i % 2)
				}
				want = append(want, rec)
				b.record(rec)
			}

			r, err := NewReader(b.reader(), tt.rev)
			require.NoError(t, err)
			require.Equal(t, v, r.Variant())

			var got []Record
			for rec, err := range r.All() {
				require.NoError(t, err)
				got = append(got, *rec)
			}
			require.Equal(t, want, got)
			require.Equal(t, 3, r.Count())
			require.Equal(t, int64(len(b.bytes())), r.Offset())
		})
	}
}

func TestDecode_SecondaryCategorySplit(t *testing.T) {
	// v2, positive tests, absolute time, split: binCount=4 yields 6 timelines of 4.
	b := newFileBuilder(t, V2, 10, 0x19)
	b.record(Record{Timelines: timelines(6, 4, 1), MaxedOutPeriod: NoPeriod, ExtinctionPeriod: 3})

	var rec *Record
	_, err := Decode(b.reader(), V2, func(r *Record) error {
		rec = r
		return nil
	})
	require.NoError(t, err)
	require.Len(t, rec.Timelines, 6)
	for _, tl := range rec.Timelines {
		require.Len(t, tl, 4)
	}
	require.Equal(t, []uint32{1, 2, 3, 4}, rec.Timeline(ActiveInfections, Primary))
	require.Equal(t, []uint32{9, 10, 11, 12}, rec.Timeline(NewPositiveTests, Primary))
	require.Equal(t, []uint32{13, 14, 15, 16}, rec.Timeline(ActiveInfections, Secondary))
	require.Equal(t, []uint32{21, 22, 23, 24}, rec.Timeline(NewPositiveTests, Secondary))
	require.True(t, rec.WentExtinct())
	require.False(t, rec.MaxedOut())
}

func TestDecode_RelativeTimeIgnoresSplit(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	b := newFileBuilder(t, V2, 10, 0x1b)
	require.Equal(t, 3, b.variant.SubTimelines)
	b.record(Record{Timelines: timelines(3, 2, 0), T0Index: 1, MaxedOutPeriod: 2, ExtinctionPeriod: NoPeriod})

	r, err := NewReader(b.reader(), V2, WithLogger(logger))
	require.NoError(t, err)
	require.Contains(t, logs.String(), "secondary category flag")

	rec, err := r.Next()
	require.NoError(t, err)
	require.Len(t, rec.Timelines, 3)
	require.Nil(t, rec.Timeline(ActiveInfections, Secondary))
	require.True(t, rec.MaxedOut())
	require.False(t, rec.WentExtinct())
}

func TestReader_CleanEndAfterRecords(t *testing.T) {
	b := newFileBuilder(t, V1, 5, 0x01)
	for i := 0; i < 4; i++ {
		b.record(Record{Timelines: timelines(2, 3, 0)})
	}

	n, err := Decode(b.reader(), V1, func(*Record) error { return nil })
	require.NoError(t, err)
	require.Equal(t, 4, n)
}

func TestReader_EmptyBody(t *testing.T) {
	b := newFileBuilder(t, V2, 5, 0x01)

	r, err := NewReader(b.reader(), V2)
	require.NoError(t, err)
	_, err = r.Next()
	require.ErrorIs(t, err, io.EOF)
	// The terminal state is sticky.
	_, err = r.Next()
	require.ErrorIs(t, err, io.EOF)
	require.Equal(t, 0, r.Count())
}

func TestReader_ShortPayload(t *testing.T) {
	b := newFileBuilder(t, V1, 5, 0x00)
	b.record(Record{Timelines: timelines(2, 2, 0)})
	// binCount=3, t0Index=0, extinct=1, then only 5 of 6 payload words.
	b.raw(0x03, 0, 0, 0, 0, 0, 0, 0, 0x01)
	for i := 0; i < 5; i++ {
		b.raw(0x07, 0, 0, 0)
	}

	var seen []int
	n, err := Decode(b.reader(), V1, func(r *Record) error {
		seen = append(seen, r.Index)
		return nil
	})
	require.ErrorIs(t, err, binread.ErrCorruptPayload)
	require.ErrorIs(t, err, binread.ErrTruncatedInput)
	require.Equal(t, 1, n)
	require.Equal(t, []int{0}, seen)
}

func TestReader_PartialRecordHeader(t *testing.T) {
	b := newFileBuilder(t, V2, 5, 0x00)
	b.record(Record{Timelines: timelines(2, 1, 0)})
	b.raw(0x01, 0x00, 0x00)

	r, err := NewReader(b.reader(), V2)
	require.NoError(t, err)

	_, err = r.Next()
	require.NoError(t, err)
	_, err = r.Next()
	require.ErrorIs(t, err, binread.ErrCorruptPayload)

	var de *binread.DecodeError
	require.True(t, errors.As(err, &de))
	require.Contains(t, de.Msg, "partial v2-relative record header")

	// Errors are sticky as well.
	_, err2 := r.Next()
	require.Equal(t, err, err2)
}

func TestReader_ZeroBinCount(t *testing.T) {
	b := newFileBuilder(t, V1, 5, 0x01)
	b.raw(0, 0, 0, 0, 0)

	r, err := NewReader(b.reader(), V1)
	require.NoError(t, err)
	_, err = r.Next()
	require.ErrorIs(t, err, binread.ErrCorruptPayload)
}

func TestReader_MaxBinCount(t *testing.T) {
	b := newFileBuilder(t, V1, 5, 0x01)
	b.record(Record{Timelines: timelines(2, 10, 0)})

	r, err := NewReader(b.reader(), V1, WithMaxBinCount(8))
	require.NoError(t, err)
	_, err = r.Next()
	require.ErrorIs(t, err, binread.ErrCorruptPayload)
	require.Contains(t, err.Error(), "exceeds limit 8")

	r, err = NewReader(b.reader(), V1, WithMaxBinCount(0))
	require.NoError(t, err)
	rec, err := r.Next()
	require.NoError(t, err)
	require.Equal(t, 10, rec.BinCount())
}

func TestReader_HugeBinCountWithoutPayload(t *testing.T) {
	data := []byte{
		// v2 absolute, positive tests, split
		0x05, 0x00, 0x00, 0x00, 0x19,
		// binCount, maxedOutPeriod, extinctionPeriod and no payload
		0xff, 0xff, 0xff, 0x00,
		0xff, 0xff, 0xff, 0x7f,
		0x01, 0x00, 0x00, 0x00,
	}

	for _, limit := range []uint32{DefaultMaxBinCount, 0} {
		var before, after runtime.MemStats
		runtime.GC()
		runtime.ReadMemStats(&before)
		n, err := Decode(bytes.NewReader(data), V2, func(*Record) error { return nil }, WithMaxBinCount(limit))
		runtime.ReadMemStats(&after)

		require.ErrorIs(t, err, binread.ErrCorruptPayload)
		require.ErrorIs(t, err, binread.ErrTruncatedInput)
		require.Zero(t, n)
		require.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(4<<20), "max bins %d", limit)
	}
}

func TestReader_InvalidRevision(t *testing.T) {
	_, err := NewReader(bytes.NewReader([]byte{0, 0, 0, 0, 0}), Revision(3))
	require.Error(t, err)
}

func TestReader_TruncatedFileHeader(t *testing.T) {
	_, err := NewReader(bytes.NewReader([]byte{0x05, 0x00}), V1)
	require.ErrorIs(t, err, binread.ErrTruncatedInput)

	n, err := Decode(strings.NewReader(""), V2, func(*Record) error { return nil })
	require.ErrorIs(t, err, binread.ErrTruncatedInput)
	require.Equal(t, 0, n)
}

func TestDecode_ConsumerError(t *testing.T) {
	b := newFileBuilder(t, V1, 5, 0x01)
	for i := 0; i < 5; i++ {
		b.record(Record{Timelines: timelines(2, 1, uint32(i))})
	}

	stop := errors.New("enough")
	calls := 0
	n, err := Decode(b.reader(), V1, func(r *Record) error {
		calls++
		if r.Index == 2 {
			return stop
		}
		return nil
	})
	require.ErrorIs(t, err, binread.ErrConsumerAborted)
	require.ErrorIs(t, err, stop)
	require.Equal(t, 2, n)
	require.Equal(t, 3, calls)
}

func TestDecodeContext_Cancelled(t *testing.T) {
	b := newFileBuilder(t, V1, 5, 0x01)
	for i := 0; i < 5; i++ {
		b.record(Record{Timelines: timelines(2, 1, 0)})
	}

	ctx, cancel := context.WithCancel(context.Background())
	n, err := DecodeContext(ctx, b.reader(), V1, func(r *Record) error {
		if r.Index == 1 {
			cancel()
		}
		return nil
	})
	require.ErrorIs(t, err, binread.ErrConsumerAborted)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 2, n)
}

func TestReader_AllStopsPulling(t *testing.T) {
	b := newFileBuilder(t, V1, 5, 0x01)
	for i := 0; i < 5; i++ {
		b.record(Record{Timelines: timelines(2, 2, 0)})
	}

	r, err := NewReader(b.reader(), V1)
	require.NoError(t, err)
	for rec, err := range r.All() {
		require.NoError(t, err)
		if rec.Index == 1 {
			break
		}
	}
	require.Equal(t, 2, r.Count())
	// Nothing beyond the second record has been consumed.
	require.Equal(t, int64(HeaderSize+2*(5+16)), r.Offset())
}

func TestReader_AllYieldsError(t *testing.T) {
	b := newFileBuilder(t, V1, 5, 0x01)
	b.record(Record{Timelines: timelines(2, 2, 0)})
	b.raw(0x02)

	r, err := NewReader(b.reader(), V1)
	require.NoError(t, err)

	var recs int
	var errs []error
	for rec, err := range r.All() {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		require.NotNil(t, rec)
		recs++
	}
	require.Equal(t, 1, recs)
	require.Len(t, errs, 1)
	require.ErrorIs(t, errs[0], binread.ErrCorruptPayload)
}

func TestRecord_TimelinesDoNotOverlap(t *testing.T) {
	b := newFileBuilder(t, V1, 5, 0x09)
	b.record(Record{Timelines: timelines(3, 2, 0)})

	r, err := NewReader(b.reader(), V1)
	require.NoError(t, err)
	rec, err := r.Next()
	require.NoError(t, err)

	rec.Timelines[0] = append(rec.Timelines[0], 99)
	require.Equal(t, []uint32{2, 3}, rec.Timelines[1])
}

func TestRecord_NoInitialInfection(t *testing.T) {
	rec := Record{
		Variant:          SelectVariant(V2, false, false, false),
		MaxedOutPeriod:   NoPeriod,
		ExtinctionPeriod: NoInitialInfection,
	}
	require.False(t, rec.HadInitialInfection())
	require.False(t, rec.WentExtinct())

	v1 := Record{Variant: SelectVariant(V1, true, false, false), Extinct: 1}
	require.True(t, v1.HadInitialInfection())
	require.True(t, v1.WentExtinct())
	require.False(t, v1.MaxedOut())
}

func TestSplitTimelines(t *testing.T) {
	out, err := splitTimelines([]uint32{1, 2, 3, 4, 5, 6}, 3)
	require.NoError(t, err)
	require.Equal(t, [][]uint32{{1, 2}, {3, 4}, {5, 6}}, out)

	_, err = splitTimelines([]uint32{1, 2, 3, 4, 5}, 2)
	require.Error(t, err)
	_, err = splitTimelines([]uint32{1}, 0)
	require.Error(t, err)
}
