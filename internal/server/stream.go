package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"rosdecode/internal/export"
	"rosdecode/pkg/binread"
	"rosdecode/pkg/ctout"
	"rosdecode/pkg/tlout"
)

// Message types sent over a record stream.
const (
	MessageHeader = "header"
	MessageRecord = "record"
	MessageDone   = "done"
	MessageError  = "error"
)

// StreamHeader describes the tlout file before its records are streamed.
type StreamHeader struct {
	Revision    string `json:"revision"`
	Layout      string `json:"layout"`
	TimeOrigin  string `json:"time_origin"`
	PeriodCount uint32 `json:"period_count"`
	ModeFlags   uint8  `json:"mode_flags"`
}

// StreamMessage is one websocket message of a record stream. A stream is an
// optional header, one record message per record, then done or error. Count
// is the number of records sent before done or error.
type StreamMessage struct {
	Type     string           `json:"type"`
	Header   *StreamHeader    `json:"header,omitempty"`
	Timeline *export.Timeline `json:"timeline,omitempty"`
	Contact  *ctout.Record    `json:"contact,omitempty"`
	Count    int              `json:"count,omitempty"`
	Error    string           `json:"error,omitempty"`
}

const writeWait = 10 * time.Second

// stream holds one upgraded connection. Its context is cancelled when the
// client goes away.
type stream struct {
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func openStream(w http.ResponseWriter, r *http.Request) (*stream, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(r.Context())
	st := &stream{conn: conn, ctx: ctx, cancel: cancel, done: make(chan struct{})}

	// The client never sends data; reading is how a close or a dropped
	// connection is noticed.
	go func() {
		defer close(st.done)
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return st, nil
}

func (st *stream) send(msg StreamMessage) error {
	if err := st.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return st.conn.WriteJSON(msg)
}

// finish sends the final message and closes the connection.
func (st *stream) finish(count int, err error) {
	switch {
	case err == nil:
		_ = st.send(StreamMessage{Type: MessageDone, Count: count})
	case errors.Is(err, binread.ErrConsumerAborted):
		slog.Info("Record stream stopped by client", "records", count, "error", err)
	default:
		slog.Error("Record stream failed", "records", count, "error", err)
		_ = st.send(StreamMessage{Type: MessageError, Count: count, Error: err.Error()})
	}

	_ = st.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	// wait briefly for the client's close frame, then drop the connection
	select {
	case <-st.done:
	case <-time.After(time.Second):
	}
	if err := st.conn.Close(); err != nil {
		slog.Debug("Failed to close WebSocket connection", "error", err)
	}
	<-st.done
	st.cancel()
}

// handleWSTimelines streams the records of a tlout file.
func (s *Server) handleWSTimelines(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	f, _, err := s.openDataFile(name, KindTlout)
	if err != nil {
		writeHTTPError(w, err)
		return
	}
	defer f.Close()

	tr, err := tlout.NewReader(f, s.cfg.TloutRevision, s.cfg.TloutOptions()...)
	if err != nil {
		writeHTTPError(w, decodeError(name, err))
		return
	}

	st, err := openStream(w, r)
	if err != nil {
		slog.Error("Failed to upgrade to WebSocket", "error", err)
		return
	}

	h := tr.Header()
	err = st.send(StreamMessage{Type: MessageHeader, Header: &StreamHeader{
		Revision:    tr.Revision().String(),
		Layout:      tr.Variant().Layout.String(),
		TimeOrigin:  h.TimeOrigin().String(),
		PeriodCount: h.PeriodCount,
		ModeFlags:   h.ModeFlags,
	}})
	n := 0
	if err == nil {
		n, err = tr.ForEach(st.ctx, func(rec *tlout.Record) error {
			t := export.NewTimeline(rec)
			return st.send(StreamMessage{Type: MessageRecord, Timeline: &t})
		})
	} else {
		err = binread.Errorf(binread.ErrConsumerAborted, tr.Offset(), err, "sending header")
	}
	st.finish(n, err)
}

// handleWSContacts streams the records of a ctout file.
func (s *Server) handleWSContacts(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	f, _, err := s.openDataFile(name, KindCtout)
	if err != nil {
		writeHTTPError(w, err)
		return
	}
	records, err := ctout.Decode(f, s.cfg.CtoutRevision)
	_ = f.Close()
	if err != nil {
		writeHTTPError(w, decodeError(name, err))
		return
	}

	st, err := openStream(w, r)
	if err != nil {
		slog.Error("Failed to upgrade to WebSocket", "error", err)
		return
	}

	n := 0
	for i := range records {
		if err = st.ctx.Err(); err == nil {
			err = st.send(StreamMessage{Type: MessageRecord, Contact: &records[i]})
		}
		if err != nil {
			err = binread.Errorf(binread.ErrConsumerAborted, int64(i*ctout.RecordSize), err, "record %d", i)
			break
		}
		n++
	}
	st.finish(n, err)
}

// writeHTTPError answers a request that was not upgraded.
func writeHTTPError(w http.ResponseWriter, err error) {
	var he httpError
	if errors.As(err, &he) {
		http.Error(w, he.Message, he.StatusCode)
		return
	}
	slog.Error("WebSocket setup failed", "error", err)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
