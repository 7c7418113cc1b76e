// Package report aggregates decoded tlout and ctout files into summaries and
// renders them as Markdown or sanitized HTML.
package report

import (
	"context"
	"math"

	"rosdecode/pkg/tlout"
)

// TimelineSummary aggregates all paths of a tlout file.
type TimelineSummary struct {
	Revision    string `json:"revision"`
	Layout      string `json:"layout"`
	TimeOrigin  string `json:"time_origin"`
	PeriodCount uint32 `json:"period_count"`
	Timelines   int    `json:"timelines"`

	Paths              int `json:"paths"`
	Extinct            int `json:"extinct"`
	MaxedOut           int `json:"maxed_out"`
	NoInitialInfection int `json:"no_initial_infection"`

	MinBins  int     `json:"min_bins"`
	MaxBins  int     `json:"max_bins"`
	MeanBins float64 `json:"mean_bins"`

	// Totals are indexed by category: primary, then secondary when split.
	NewInfections []uint64 `json:"new_infections"`
	PositiveTests []uint64 `json:"positive_tests,omitempty"`

	// MeanActive is the mean number of active infections per bin over all
	// paths. Bins are aligned on t=0 for relative-time files, so
	// MeanActive[ZeroBin] is the bin at t=0.
	MeanActive []float64 `json:"mean_active"`
	ZeroBin    int       `json:"zero_bin"`
	PeakActive float64   `json:"peak_active"`
}

// TimelineAccumulator builds a TimelineSummary one record at a time.
type TimelineAccumulator struct {
	variant tlout.Variant
	sum     TimelineSummary
	binSum  int

	// active sums per aligned bin: before[i] is offset -(i+1), after[i]
	// is offset i.
	before []uint64
	after  []uint64
}

// NewTimelineAccumulator prepares an accumulator for the file read by r.
func NewTimelineAccumulator(r *tlout.Reader) *TimelineAccumulator {
	h, v := r.Header(), r.Variant()
	categories := 1
	if v.Split() {
		categories = 2
	}
	a := &TimelineAccumulator{
		variant: v,
		sum: TimelineSummary{
			Revision:      r.Revision().String(),
			Layout:        v.Layout.String(),
			TimeOrigin:    h.TimeOrigin().String(),
			PeriodCount:   h.PeriodCount,
			Timelines:     v.SubTimelines,
			NewInfections: make([]uint64, categories),
		},
	}
	if v.Multiplier == 3 {
		a.sum.PositiveTests = make([]uint64, categories)
	}
	return a
}

// Add folds one record into the summary.
func (a *TimelineAccumulator) Add(rec *tlout.Record) {
	s := &a.sum
	s.Paths++
	if rec.WentExtinct() {
		s.Extinct++
	}
	if rec.MaxedOut() {
		s.MaxedOut++
	}
	if !rec.HadInitialInfection() {
		s.NoInitialInfection++
	}

	bins := rec.BinCount()
	if s.Paths == 1 || bins < s.MinBins {
		s.MinBins = bins
	}
	if bins > s.MaxBins {
		s.MaxBins = bins
	}
	a.binSum += bins

	for c := range s.NewInfections {
		s.NewInfections[c] += total(rec.Timeline(tlout.NewInfections, tlout.Category(c)))
	}
	for c := range s.PositiveTests {
		s.PositiveTests[c] += total(rec.Timeline(tlout.NewPositiveTests, tlout.Category(c)))
	}

	origin := int(rec.T0Index)
	for b, v := range rec.Timeline(tlout.ActiveInfections, tlout.Primary) {
		off := b - origin
		if off < 0 {
			i := -off - 1
			for len(a.before) <= i {
				a.before = append(a.before, 0)
			}
			a.before[i] += uint64(v)
			continue
		}
		for len(a.after) <= off {
			a.after = append(a.after, 0)
		}
		a.after[off] += uint64(v)
	}
}

// Summary returns the summary of all records added so far.
func (a *TimelineAccumulator) Summary() *TimelineSummary {
	s := a.sum
	if s.Paths > 0 {
		s.MeanBins = float64(a.binSum) / float64(s.Paths)
	}
	s.NewInfections = append([]uint64(nil), s.NewInfections...)
	if s.PositiveTests != nil {
		s.PositiveTests = append([]uint64(nil), s.PositiveTests...)
	}

	s.ZeroBin = len(a.before)
	s.MeanActive = make([]float64, len(a.before)+len(a.after))
	s.PeakActive = 0
	for i, v := range a.before {
		s.MeanActive[len(a.before)-1-i] = mean(v, s.Paths)
	}
	for i, v := range a.after {
		s.MeanActive[s.ZeroBin+i] = mean(v, s.Paths)
	}
	for _, v := range s.MeanActive {
		s.PeakActive = math.Max(s.PeakActive, v)
	}
	return &s
}

// SummarizeTimelines consumes every remaining record of r.
func SummarizeTimelines(ctx context.Context, r *tlout.Reader) (*TimelineSummary, error) {
	a := NewTimelineAccumulator(r)
	if _, err := r.ForEach(ctx, func(rec *tlout.Record) error {
		a.Add(rec)
		return nil
	}); err != nil {
		return nil, err
	}
	return a.Summary(), nil
}

func total(tl []uint32) uint64 {
	var n uint64
	for _, v := range tl {
		n += uint64(v)
	}
	return n
}

func mean(sum uint64, n int) float64 {
	if n == 0 {
		return 0
	}
	return float64(sum) / float64(n)
}
