package ctout

import (
	"encoding/binary"
	"fmt"
	"io"

	"rosdecode/pkg/binread"
)

// Decode reads all remaining bytes of src and decodes them as records of the
// given revision.
func Decode(src io.Reader, rev Revision) ([]Record, error) {
	if !rev.Valid() {
		return nil, fmt.Errorf("ctout: invalid revision %v", rev)
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("ctout: reading source: %w", err)
	}
	return DecodeBytes(data, rev)
}

// DecodeBytes decodes data as records of the given revision. A trailing
// partial record is an error.
func DecodeBytes(data []byte, rev Revision) ([]Record, error) {
	if !rev.Valid() {
		return nil, fmt.Errorf("ctout: invalid revision %v", rev)
	}
	if rem := len(data) % RecordSize; rem != 0 {
		return nil, binread.Errorf(binread.ErrCorruptPayload, int64(len(data)-rem), nil,
			"%d bytes is not a multiple of the %d-byte record size", len(data), RecordSize)
	}

	records := make([]Record, len(data)/RecordSize)
	for i := range records {
		records[i] = decodeRecord(data[i*RecordSize:(i+1)*RecordSize], rev)
	}
	return records, nil
}

func decodeRecord(b []byte, rev Revision) Record {
	le := binary.LittleEndian
	rec := Record{
		PositiveTestTime:       int32(le.Uint32(b[0:])),
		PresymptomaticDuration: int32(le.Uint32(b[4:])),
		TracedContactCount:     le.Uint32(b[16:]),
	}
	if rev == V1 {
		rec.ChildID = int64(le.Uint32(b[8:]))
		rec.ParentID = int64(le.Uint32(b[12:]))
		return rec
	}
	rec.ChildID = int64(int32(le.Uint32(b[8:])))
	rec.ParentID = int64(int32(le.Uint32(b[12:])))
	rec.Untraced = rec.ParentID < 0
	return rec
}
