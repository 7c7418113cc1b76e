package report

import (
	"sort"

	"rosdecode/pkg/ctout"
)

// DayCount is the number of positive tests on one day period.
type DayCount struct {
	Day   int32 `json:"day"`
	Count int   `json:"count"`
}

// ContactSummary aggregates the records of a ctout file.
type ContactSummary struct {
	Revision           string     `json:"revision"`
	Records            int        `json:"records"`
	Untraced           int        `json:"untraced"`
	DistinctChildren   int        `json:"distinct_children"`
	TracedContacts     uint64     `json:"traced_contacts"`
	MeanTracedContacts float64    `json:"mean_traced_contacts"`
	FirstTestTime      int32      `json:"first_test_time"`
	LastTestTime       int32      `json:"last_test_time"`
	PerDay             []DayCount `json:"per_day"`
}

// SummarizeContacts aggregates records decoded with revision rev.
func SummarizeContacts(rev ctout.Revision, records []ctout.Record) *ContactSummary {
	s := &ContactSummary{Revision: rev.String(), Records: len(records)}
	children := make(map[int64]struct{}, len(records))
	days := make(map[int32]int)

	for i, rec := range records {
		if rec.Untraced {
			s.Untraced++
		}
		children[rec.ChildID] = struct{}{}
		s.TracedContacts += uint64(rec.TracedContactCount)
		if i == 0 || rec.PositiveTestTime < s.FirstTestTime {
			s.FirstTestTime = rec.PositiveTestTime
		}
		if i == 0 || rec.PositiveTestTime > s.LastTestTime {
			s.LastTestTime = rec.PositiveTestTime
		}
		days[rec.PositiveTestPeriod()]++
	}

	s.DistinctChildren = len(children)
	if len(records) > 0 {
		s.MeanTracedContacts = float64(s.TracedContacts) / float64(len(records))
	}
	s.PerDay = make([]DayCount, 0, len(days))
	for d, n := range days {
		s.PerDay = append(s.PerDay, DayCount{Day: d, Count: n})
	}
	sort.Slice(s.PerDay, func(i, j int) bool { return s.PerDay[i].Day < s.PerDay[j].Day })
	return s
}
