package tlout

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"math"

	"rosdecode/pkg/binread"
)

// DefaultMaxBinCount is the largest binCount a Reader accepts unless
// configured otherwise. A header claiming more bins is treated as corrupt.
const DefaultMaxBinCount = 1 << 24

type options struct {
	maxBinCount uint32
	logger      *slog.Logger
}

// Option configures a Reader.
type Option func(*options)

// WithMaxBinCount sets the largest accepted binCount. Zero disables the
// check.
func WithMaxBinCount(n uint32) Option {
	return func(o *options) {
		o.maxBinCount = n
	}
}

// WithLogger sets the logger used for diagnostics. The default is
// slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// Reader decodes the records of a tlout file one at a time. A Reader is not
// safe for concurrent use and cannot be restarted.
type Reader struct {
	cur     *binread.Cursor
	rev     Revision
	header  Header
	variant Variant
	opts    options

	n   int
	err error // sticky; io.EOF after a clean end
}

// NewReader reads the file header from r and returns a Reader positioned at
// the first record.
func NewReader(r io.Reader, rev Revision, opts ...Option) (*Reader, error) {
	if !rev.Valid() {
		return nil, fmt.Errorf("tlout: invalid revision %v", rev)
	}
	o := options{maxBinCount: DefaultMaxBinCount}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	cur := binread.NewCursor(r)
	h, err := readHeader(cur)
	if err != nil {
		return nil, err
	}
	v := h.Variant(rev)

	if rev == V2 && h.HasRelativeTime && h.SplitsSecondaryCategory {
		// The simulator's v2 reader ignores the bit for relative time too.
		o.logger.Warn("tlout: secondary category flag set on a relative-time file, ignoring it",
			"modeFlags", fmt.Sprintf("%#02x", h.ModeFlags))
	}
	o.logger.Debug("tlout: header decoded",
		"revision", rev,
		"periods", h.PeriodCount,
		"origin", h.TimeOrigin(),
		"layout", v.Layout,
		"timelines", v.SubTimelines)

	return &Reader{
		cur:     cur,
		rev:     rev,
		header:  h,
		variant: v,
		opts:    o,
	}, nil
}

// Header returns the decoded file header.
func (r *Reader) Header() Header {
	return r.header
}

// Variant returns the record layout selected for this file.
func (r *Reader) Variant() Variant {
	return r.variant
}

// Revision returns the format revision the Reader was created with.
func (r *Reader) Revision() Revision {
	return r.rev
}

// Count returns the number of records decoded so far.
func (r *Reader) Count() int {
	return r.n
}

// Offset returns the number of bytes consumed from the source.
func (r *Reader) Offset() int64 {
	return r.cur.Offset()
}

// Next decodes the next record. It returns io.EOF once the file ends cleanly
// at a record boundary. After any error, including io.EOF, every further
// call returns the same error.
func (r *Reader) Next() (*Record, error) {
	if r.err != nil {
		return nil, r.err
	}
	rec, err := r.readRecord()
	if err != nil {
		r.err = err
		return nil, err
	}
	r.n++
	return rec, nil
}

func (r *Reader) readRecord() (*Record, error) {
	layout := r.variant.Layout
	b, ok, err := r.cur.TryReadExact(layout.HeaderSize())
	if err != nil {
		if errors.Is(err, binread.ErrTruncatedInput) {
			return nil, binread.Errorf(binread.ErrCorruptPayload, r.cur.Offset(), err,
				"record %d: partial %s record header", r.n, layout)
		}
		return nil, err
	}
	if !ok {
		return nil, io.EOF
	}

	// b aliases the cursor buffer, so every header field is extracted before
	// the payload is read.
	rec := &Record{Index: r.n, Variant: r.variant}
	binCount := binary.LittleEndian.Uint32(b)
	switch layout {
	case LayoutV1Relative:
		rec.T0Index = binary.LittleEndian.Uint32(b[4:])
		rec.Extinct = b[8]
	case LayoutV1Absolute:
		rec.Extinct = b[4]
	case LayoutV2Relative:
		rec.T0Index = binary.LittleEndian.Uint32(b[4:])
		rec.MaxedOutPeriod = int32(binary.LittleEndian.Uint32(b[8:]))
		rec.ExtinctionPeriod = int32(binary.LittleEndian.Uint32(b[12:]))
	case LayoutV2Absolute:
		rec.MaxedOutPeriod = int32(binary.LittleEndian.Uint32(b[4:]))
		rec.ExtinctionPeriod = int32(binary.LittleEndian.Uint32(b[8:]))
	}

	if binCount == 0 {
		return nil, binread.Errorf(binread.ErrCorruptPayload, r.cur.Offset(), nil,
			"record %d: zero bin count", r.n)
	}
	if r.opts.maxBinCount != 0 && binCount > r.opts.maxBinCount {
		return nil, binread.Errorf(binread.ErrCorruptPayload, r.cur.Offset(), nil,
			"record %d: bin count %d exceeds limit %d", r.n, binCount, r.opts.maxBinCount)
	}
	words := r.variant.PayloadWords(binCount)
	if words > math.MaxInt/4 {
		return nil, binread.Errorf(binread.ErrCorruptPayload, r.cur.Offset(), nil,
			"record %d: payload of %d words is too large", r.n, words)
	}

	payload, err := r.cur.U32s(int(words))
	if err != nil {
		if errors.Is(err, binread.ErrTruncatedInput) {
			return nil, binread.Errorf(binread.ErrCorruptPayload, r.cur.Offset(), err,
				"record %d: payload of %d words", r.n, words)
		}
		return nil, err
	}
	// payload holds binCount*SubTimelines words, so this only fails if
	// PayloadWords and SubTimelines disagree.
	rec.Timelines, err = splitTimelines(payload, r.variant.SubTimelines)
	if err != nil {
		return nil, binread.Errorf(binread.ErrCorruptPayload, r.cur.Offset(), nil,
			"record %d: %v", r.n, err)
	}
	return rec, nil
}

// splitTimelines cuts payload into parts contiguous slices of equal length.
// The slices share payload's backing array but cannot grow into each other.
func splitTimelines(payload []uint32, parts int) ([][]uint32, error) {
	if parts <= 0 || len(payload)%parts != 0 {
		return nil, fmt.Errorf("%d payload words do not split into %d timelines", len(payload), parts)
	}
	n := len(payload) / parts
	out := make([][]uint32, parts)
	for i := range out {
		out[i] = payload[i*n : (i+1)*n : (i+1)*n]
	}
	return out, nil
}

// All returns the remaining records as a lazy sequence. Decoding stops when
// the loop body breaks; a decode error is yielded once as the last element.
func (r *Reader) All() iter.Seq2[*Record, error] {
	return func(yield func(*Record, error) bool) {
		for {
			rec, err := r.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

// ForEach hands every remaining record to fn, in file order, until the file
// ends or fn returns an error. It returns the number of records fn accepted.
// An error from fn, or the cancellation of ctx, stops the decode and is
// returned as ErrConsumerAborted wrapping the original error.
func (r *Reader) ForEach(ctx context.Context, fn func(*Record) error) (int, error) {
	delivered := 0
	for {
		if err := ctx.Err(); err != nil {
			r.err = binread.Errorf(binread.ErrConsumerAborted, r.cur.Offset(), err,
				"before record %d", r.n)
			return delivered, r.err
		}
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return delivered, nil
		}
		if err != nil {
			return delivered, err
		}
		if err := fn(rec); err != nil {
			r.err = binread.Errorf(binread.ErrConsumerAborted, r.cur.Offset(), err,
				"record %d", rec.Index)
			return delivered, r.err
		}
		delivered++
	}
}

// Decode reads a whole tlout file from src and calls onRecord for every
// record. It returns the number of records onRecord accepted.
func Decode(src io.Reader, rev Revision, onRecord func(*Record) error, opts ...Option) (int, error) {
	return DecodeContext(context.Background(), src, rev, onRecord, opts...)
}

// DecodeContext is Decode with a context checked before every record.
func DecodeContext(ctx context.Context, src io.Reader, rev Revision, onRecord func(*Record) error, opts ...Option) (int, error) {
	r, err := NewReader(src, rev, opts...)
	if err != nil {
		return 0, err
	}
	return r.ForEach(ctx, onRecord)
}
