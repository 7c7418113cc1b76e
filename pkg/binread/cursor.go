// Package binread provides a forward-only little-endian reader over a byte
// source and the error kinds shared by the tlout and ctout decoders.
package binread

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// Cursor reads exact-size values from an io.Reader, strictly sequentially.
// It never seeks and never reads ahead.
type Cursor struct {
	r       io.Reader
	off     int64
	scratch []byte
}

// NewCursor returns a Cursor positioned at the current position of r.
func NewCursor(r io.Reader) *Cursor {
	return &Cursor{r: r}
}

// Offset returns the number of bytes consumed so far.
func (c *Cursor) Offset() int64 {
	return c.off
}

func (c *Cursor) buf(n int) []byte {
	if cap(c.scratch) < n {
		c.scratch = make([]byte, n)
	}
	return c.scratch[:n]
}

// ReadExact reads exactly n bytes. A source with fewer than n bytes left
// yields ErrTruncatedInput. The returned slice is only valid until the next
// read on c.
func (c *Cursor) ReadExact(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("binread: negative length %d", n)
	}
	b := c.buf(n)
	got, err := io.ReadFull(c.r, b)
	c.off += int64(got)
	if err != nil {
		return nil, c.shortRead(n, got, err)
	}
	return b, nil
}

// TryReadExact is ReadExact for positions where the source may legitimately
// end. It returns ok == false and a nil error when no byte at all is left;
// a partial read is still ErrTruncatedInput.
func (c *Cursor) TryReadExact(n int) (b []byte, ok bool, err error) {
	if n <= 0 {
		return nil, false, fmt.Errorf("binread: invalid length %d", n)
	}
	b = c.buf(n)
	got, err := io.ReadFull(c.r, b)
	c.off += int64(got)
	if err != nil {
		if got == 0 && errors.Is(err, io.EOF) {
			return nil, false, nil
		}
		return nil, false, c.shortRead(n, got, err)
	}
	return b, true, nil
}

func (c *Cursor) shortRead(want, got int, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return Errorf(ErrTruncatedInput, c.off, nil, "want %d bytes, got %d", want, got)
	}
	return fmt.Errorf("binread: read at offset %d: %w", c.off, err)
}

// U8 reads one byte.
func (c *Cursor) U8() (uint8, error) {
	b, err := c.ReadExact(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// U32 reads a little-endian uint32.
func (c *Cursor) U32() (uint32, error) {
	b, err := c.ReadExact(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// I32 reads a little-endian int32.
func (c *Cursor) I32() (int32, error) {
	v, err := c.U32()
	return int32(v), err
}

// chunkWords is the number of words U32s reads per step: 64 KiB.
const chunkWords = 16 << 10

// U32s reads n little-endian uint32 values into a newly allocated slice
// owned by the caller. The slice grows as data arrives, so a claimed length
// larger than the source costs no more memory than the source holds.
func (c *Cursor) U32s(n int) ([]uint32, error) {
	if n < 0 || n > math.MaxInt/4 {
		return nil, fmt.Errorf("binread: invalid word count %d", n)
	}
	out := make([]uint32, 0, min(n, chunkWords))
	for len(out) < n {
		k := min(n-len(out), chunkWords)
		b := c.buf(k * 4)
		got, err := io.ReadFull(c.r, b)
		c.off += int64(got)
		if err != nil {
			return nil, c.shortRead(n*4, len(out)*4+got, err)
		}
		for i := 0; i < k; i++ {
			out = append(out, binary.LittleEndian.Uint32(b[i*4:]))
		}
	}
	return out, nil
}
