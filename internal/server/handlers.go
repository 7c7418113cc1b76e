package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"rosdecode/internal/report"
	"rosdecode/pkg/binread"
	"rosdecode/pkg/ctout"
	"rosdecode/pkg/tlout"
)

// Kinds of data files.
const (
	KindTlout = "tlout"
	KindCtout = "ctout"
)

// FileInfo is one entry of the index listing.
type FileInfo struct {
	Name    string    `json:"name"`
	Kind    string    `json:"kind"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// fileKind returns the kind implied by the file extension, or "".
func fileKind(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".tlout":
		return KindTlout
	case ".ctout":
		return KindCtout
	}
	return ""
}

func (s *Server) listFiles() ([]FileInfo, error) {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read data directory: %w", err)
	}
	files := []FileInfo{}
	for _, e := range entries {
		kind := fileKind(e.Name())
		if kind == "" || !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// removed since ReadDir
			continue
		}
		files = append(files, FileInfo{
			Name:    e.Name(),
			Kind:    kind,
			Size:    info.Size(),
			ModTime: info.ModTime().UTC(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// openDataFile opens name inside the data directory. Names must be plain file
// names with the extension of the wanted kind; os.Root keeps symlinks from
// leading out of the directory.
func (s *Server) openDataFile(name, kind string) (*os.File, fs.FileInfo, error) {
	if name == "" || name != filepath.Base(name) || strings.ContainsAny(name, `/\`) || fileKind(name) != kind {
		return nil, nil, httpError{StatusCode: http.StatusBadRequest, Message: fmt.Sprintf("invalid %s file name %q", kind, name)}
	}
	root, err := os.OpenRoot(s.dataDir)
	if err != nil {
		return nil, nil, err
	}
	defer root.Close()

	f, err := root.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, httpError{StatusCode: http.StatusNotFound, Message: "File not found"}
		}
		return nil, nil, httpError{StatusCode: http.StatusForbidden, Message: err.Error()}
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	if !info.Mode().IsRegular() {
		_ = f.Close()
		return nil, nil, httpError{StatusCode: http.StatusBadRequest, Message: "Not a regular file"}
	}
	return f, info, nil
}

// decodeError maps decoder failures to 422 so that clients can tell a broken
// file from a broken server.
func decodeError(name string, err error) error {
	if errors.Is(err, binread.ErrTruncatedInput) || errors.Is(err, binread.ErrCorruptPayload) {
		return httpError{StatusCode: http.StatusUnprocessableEntity, Message: fmt.Sprintf("%s: %v", name, err)}
	}
	return err
}

func (s *Server) handleIndex(ctx context.Context, r *http.Request) ([]byte, error) {
	files, err := s.listFiles()
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(files)
	if err != nil {
		return nil, err
	}
	return nil, &contentTypeError{contentType: "application/json", data: data}
}

func (s *Server) handleReport(ctx context.Context, r *http.Request) ([]byte, error) {
	name := r.PathValue("name")
	kind := fileKind(name)
	if kind == "" {
		return nil, httpError{StatusCode: http.StatusBadRequest, Message: fmt.Sprintf("unknown file type %q", name)}
	}
	f, info, err := s.openDataFile(name, kind)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	key := fmt.Sprintf("%s|%d|%d", name, info.Size(), info.ModTime().UnixNano())
	if page, ok := s.reports.Get(key); ok {
		return nil, &contentTypeError{contentType: "text/html; charset=utf-8", data: page}
	}

	var md string
	switch kind {
	case KindTlout:
		tr, err := tlout.NewReader(f, s.cfg.TloutRevision, s.cfg.TloutOptions()...)
		if err != nil {
			return nil, decodeError(name, err)
		}
		sum, err := report.SummarizeTimelines(ctx, tr)
		if err != nil {
			return nil, decodeError(name, err)
		}
		md = report.TimelineMarkdown(name, sum)
	case KindCtout:
		records, err := ctout.Decode(f, s.cfg.CtoutRevision)
		if err != nil {
			return nil, decodeError(name, err)
		}
		md = report.ContactMarkdown(name, report.SummarizeContacts(s.cfg.CtoutRevision, records))
	}

	var buf bytes.Buffer
	err = s.tmpl.ExecuteTemplate(&buf, "report.html", map[string]interface{}{
		"Title":   name,
		"Body":    template.HTML(report.HTML(md)),
		"Name":    name,
		"Size":    info.Size(),
		"ModTime": info.ModTime(),
	})
	if err != nil {
		return nil, err
	}
	page := buf.Bytes()
	s.reports.Add(key, page)
	return nil, &contentTypeError{contentType: "text/html; charset=utf-8", data: page}
}
