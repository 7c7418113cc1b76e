package binread

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"runtime"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/require"
)

func TestCursor_TypedReads(t *testing.T) {
	c := NewCursor(bytes.NewReader([]byte{
		0x07,
		0x02, 0x00, 0x00, 0x00,
		0xff, 0xff, 0xff, 0xff,
		0x01, 0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00,
	}))

	u8, err := c.U8()
	require.NoError(t, err)
	require.Equal(t, uint8(7), u8)

	u32, err := c.U32()
	require.NoError(t, err)
	require.Equal(t, uint32(2), u32)

	i32, err := c.I32()
	require.NoError(t, err)
	require.Equal(t, int32(-1), i32)

	words, err := c.U32s(2)
	require.NoError(t, err)
	require.Equal(t, []uint32{1, 2}, words)
	require.Equal(t, int64(17), c.Offset())
}

func TestCursor_ReadExactTruncated(t *testing.T) {
	c := NewCursor(bytes.NewReader([]byte{0x01, 0x02}))

	_, err := c.ReadExact(4)
	require.ErrorIs(t, err, ErrTruncatedInput)

	var de *DecodeError
	require.True(t, errors.As(err, &de))
	require.Equal(t, int64(2), de.Offset)
}

func TestCursor_ReadExactEmptySourceIsTruncated(t *testing.T) {
	c := NewCursor(bytes.NewReader(nil))

	_, err := c.ReadExact(1)
	require.ErrorIs(t, err, ErrTruncatedInput)
}

func TestCursor_TryReadExactCleanEnd(t *testing.T) {
	c := NewCursor(bytes.NewReader(nil))

	b, ok, err := c.TryReadExact(5)
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, b)
}

func TestCursor_TryReadExactPartial(t *testing.T) {
	c := NewCursor(bytes.NewReader([]byte{0x01, 0x02, 0x03}))

	_, ok, err := c.TryReadExact(5)
	require.False(t, ok)
	require.ErrorIs(t, err, ErrTruncatedInput)
}

func TestCursor_OneByteReader(t *testing.T) {
	// Reads must assemble values across short reads from the source.
	c := NewCursor(iotest.OneByteReader(bytes.NewReader([]byte{0x78, 0x56, 0x34, 0x12})))

	v, err := c.U32()
	require.NoError(t, err)
	require.Equal(t, uint32(0x12345678), v)
}

func TestCursor_SourceErrorPassesThrough(t *testing.T) {
	boom := errors.New("disk on fire")
	c := NewCursor(iotest.ErrReader(boom))

	_, err := c.ReadExact(4)
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, ErrTruncatedInput)

	_, _, err = NewCursor(iotest.ErrReader(boom)).TryReadExact(4)
	require.ErrorIs(t, err, boom)
}

func TestCursor_InvalidLengths(t *testing.T) {
	c := NewCursor(bytes.NewReader([]byte{0x01}))

	_, err := c.ReadExact(-1)
	require.Error(t, err)

	_, _, err = c.TryReadExact(0)
	require.Error(t, err)
}

func TestCursor_U32sAcrossChunks(t *testing.T) {
	n := chunkWords*2 + 3
	data := make([]byte, n*4)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint32(data[i*4:], uint32(i))
	}
	c := NewCursor(iotest.HalfReader(bytes.NewReader(data)))

	words, err := c.U32s(n)
	require.NoError(t, err)
	require.Len(t, words, n)
	require.Equal(t, uint32(0), words[0])
	require.Equal(t, uint32(chunkWords), words[chunkWords])
	require.Equal(t, uint32(n-1), words[n-1])
	require.Equal(t, int64(n*4), c.Offset())
}

func TestCursor_U32sClaimedLengthBeyondSource(t *testing.T) {
	c := NewCursor(bytes.NewReader([]byte{1, 0, 0, 0, 2, 0}))

	var before, after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)
	_, err := c.U32s(1 << 30)
	runtime.ReadMemStats(&after)

	require.ErrorIs(t, err, ErrTruncatedInput)
	require.Contains(t, err.Error(), "got 6")
	require.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(4<<20))
	require.Equal(t, int64(6), c.Offset())
}

func TestCursor_U32sInvalidCount(t *testing.T) {
	_, err := NewCursor(bytes.NewReader(nil)).U32s(-1)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrTruncatedInput)
}

func TestDecodeError_Unwrap(t *testing.T) {
	err := Errorf(ErrCorruptPayload, 12, ErrTruncatedInput, "record %d payload", 3)

	require.ErrorIs(t, err, ErrCorruptPayload)
	require.ErrorIs(t, err, ErrTruncatedInput)
	require.NotErrorIs(t, err, ErrConsumerAborted)
	require.Equal(t, "corrupt payload at offset 12: record 3 payload: truncated input", err.Error())
}

func TestDecodeError_NilReceiver(t *testing.T) {
	var de *DecodeError
	require.Equal(t, "<nil>", de.Error())
	require.NotErrorIs(t, io.EOF, ErrTruncatedInput)
}
