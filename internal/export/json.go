package export

import (
	"bufio"
	"encoding/json"
	"io"

	"rosdecode/pkg/ctout"
	"rosdecode/pkg/tlout"
)

// jsonWriter writes one JSON object per line.
type jsonWriter struct {
	w   *bufio.Writer
	enc *json.Encoder
}

func newJSONWriter(out io.Writer) *jsonWriter {
	w := bufio.NewWriter(out)
	return &jsonWriter{w: w, enc: json.NewEncoder(w)}
}

func (j *jsonWriter) WriteTimeline(rec *tlout.Record) error {
	return j.enc.Encode(NewTimeline(rec))
}

func (j *jsonWriter) WriteContact(rec ctout.Record) error {
	return j.enc.Encode(rec)
}

func (j *jsonWriter) Flush() error {
	return j.w.Flush()
}
