// Package index keeps per-path summaries of decoded tlout files in a bbolt
// database so that later queries do not need to decode the file again.
package index

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"rosdecode/pkg/tlout"
)

var (
	bucketFiles = []byte("files")
	bucketPaths = []byte("paths")
)

// ErrNotIndexed is returned for queries about a file that was never indexed.
var ErrNotIndexed = errors.New("file not indexed")

// FileMeta describes one indexed tlout file.
type FileMeta struct {
	Path        string    `json:"path"`
	Size        int64     `json:"size"`
	ModTime     time.Time `json:"mod_time"`
	PeriodCount uint32    `json:"period_count"`
	ModeFlags   uint8     `json:"mode_flags"`
	Revision    string    `json:"revision"`
	Records     int       `json:"records"`
}

// PathSummary is the stored digest of one record.
type PathSummary struct {
	Index              int    `json:"index"`
	Bins               int    `json:"bins"`
	T0Index            uint32 `json:"t0_index"`
	Extinct            bool   `json:"extinct"`
	MaxedOut           bool   `json:"maxed_out"`
	ExtinctionPeriod   int32  `json:"extinction_period"`
	TotalNewInfections uint64 `json:"total_new_infections"`
	PeakActive         uint32 `json:"peak_active"`
}

// Filter selects paths returned by Paths. The zero value selects all.
type Filter struct {
	ExtinctOnly  bool
	MaxedOutOnly bool
}

func (f Filter) match(p PathSummary) bool {
	if f.ExtinctOnly && !p.Extinct {
		return false
	}
	if f.MaxedOutOnly && !p.MaxedOut {
		return false
	}
	return true
}

// Store is an open index database.
type Store struct {
	db *bolt.DB
}

// Open opens or creates the index database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("index path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketFiles, bucketPaths} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", string(b), err)
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// IndexTimelines decodes the tlout file at path and stores one PathSummary
// per record. Indexing a file again replaces its previous entries. Nothing is
// stored when decoding fails.
func (s *Store) IndexTimelines(ctx context.Context, path string, rev tlout.Revision, opts ...tlout.Option) (*FileMeta, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(abs)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	r, err := tlout.NewReader(f, rev, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", abs, err)
	}
	meta := &FileMeta{
		Path:        abs,
		Size:        info.Size(),
		ModTime:     info.ModTime().UTC(),
		PeriodCount: r.Header().PeriodCount,
		ModeFlags:   r.Header().ModeFlags,
		Revision:    rev.String(),
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		parent := tx.Bucket(bucketPaths)
		if parent.Bucket([]byte(abs)) != nil {
			if err := parent.DeleteBucket([]byte(abs)); err != nil {
				return err
			}
		}
		b, err := parent.CreateBucket([]byte(abs))
		if err != nil {
			return fmt.Errorf("create paths bucket: %w", err)
		}

		n, err := r.ForEach(ctx, func(rec *tlout.Record) error {
			v, err := json.Marshal(summarize(rec))
			if err != nil {
				return err
			}
			return b.Put(pathKey(rec.Index), v)
		})
		if err != nil {
			return fmt.Errorf("%s: %w", abs, err)
		}
		meta.Records = n

		v, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketFiles).Put([]byte(abs), v)
	})
	if err != nil {
		return nil, err
	}
	return meta, nil
}

// Files lists all indexed files ordered by path.
func (s *Store) Files() ([]FileMeta, error) {
	var out []FileMeta
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketFiles).ForEach(func(k, v []byte) error {
			var m FileMeta
			if err := json.Unmarshal(v, &m); err != nil {
				return fmt.Errorf("file %s: %w", k, err)
			}
			out = append(out, m)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Paths returns the stored summaries of file that match filter, in record
// order.
func (s *Store) Paths(file string, filter Filter) ([]PathSummary, error) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return nil, err
	}
	var out []PathSummary
	err = s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPaths).Bucket([]byte(abs))
		if b == nil {
			return fmt.Errorf("%s: %w", abs, ErrNotIndexed)
		}
		// keys are big-endian so the cursor walks them in record order
		return b.ForEach(func(k, v []byte) error {
			var p PathSummary
			if err := json.Unmarshal(v, &p); err != nil {
				return fmt.Errorf("path %d: %w", binary.BigEndian.Uint32(k), err)
			}
			if filter.match(p) {
				out = append(out, p)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func pathKey(index int) []byte {
	var k [4]byte
	binary.BigEndian.PutUint32(k[:], uint32(index))
	return k[:]
}

func summarize(rec *tlout.Record) PathSummary {
	p := PathSummary{
		Index:            rec.Index,
		Bins:             rec.BinCount(),
		T0Index:          rec.T0Index,
		Extinct:          rec.WentExtinct(),
		MaxedOut:         rec.MaxedOut(),
		ExtinctionPeriod: rec.ExtinctionPeriod,
	}
	for _, c := range []tlout.Category{tlout.Primary, tlout.Secondary} {
		for _, v := range rec.Timeline(tlout.NewInfections, c) {
			p.TotalNewInfections += uint64(v)
		}
	}
	for _, v := range rec.Timeline(tlout.ActiveInfections, tlout.Primary) {
		p.PeakActive = max(p.PeakActive, v)
	}
	return p
}
