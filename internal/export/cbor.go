package export

import (
	"bufio"
	"io"
	"sync"

	"github.com/fxamacker/cbor/v2"

	"rosdecode/pkg/ctout"
	"rosdecode/pkg/tlout"
)

var (
	cachedEncMode     cbor.EncMode
	cachedEncModeErr  error
	cachedEncModeOnce sync.Once
)

// getEncMode returns a cached EncMode, initializing it on first use.
func getEncMode() (cbor.EncMode, error) {
	cachedEncModeOnce.Do(func() {
		opts := cbor.CoreDetEncOptions()
		cachedEncMode, cachedEncModeErr = opts.EncMode()
	})
	return cachedEncMode, cachedEncModeErr
}

// contact is the CBOR form of a ctout record, keyed by small integers.
type contact struct {
	PositiveTestTime       int32  `cbor:"1,keyasint"`
	PresymptomaticDuration int32  `cbor:"2,keyasint"`
	ChildID                int64  `cbor:"3,keyasint"`
	ParentID               int64  `cbor:"4,keyasint"`
	TracedContactCount     uint32 `cbor:"5,keyasint"`
	Untraced               bool   `cbor:"6,keyasint"`
}

// cborWriter writes a CBOR sequence (RFC 8742): one data item per record,
// no framing.
type cborWriter struct {
	w   *bufio.Writer
	enc *cbor.Encoder
}

func newCBORWriter(out io.Writer) (*cborWriter, error) {
	em, err := getEncMode()
	if err != nil {
		return nil, err
	}
	w := bufio.NewWriter(out)
	return &cborWriter{w: w, enc: em.NewEncoder(w)}, nil
}

func (c *cborWriter) WriteTimeline(rec *tlout.Record) error {
	return c.enc.Encode(NewTimeline(rec))
}

func (c *cborWriter) WriteContact(rec ctout.Record) error {
	return c.enc.Encode(contact(rec))
}

func (c *cborWriter) Flush() error {
	return c.w.Flush()
}
