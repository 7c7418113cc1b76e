package report

import (
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/russross/blackfriday/v2"
)

// maxProfileRows limits the per-bin table of the Markdown report.
const maxProfileRows = 60

// TimelineMarkdown renders a timeline summary as Markdown.
func TimelineMarkdown(title string, s *TimelineSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "Timeline file, revision %s, layout `%s`, time origin `%s`, %d periods, %d timelines per path.\n\n",
		s.Revision, s.Layout, s.TimeOrigin, s.PeriodCount, s.Timelines)

	b.WriteString("## Paths\n\n")
	b.WriteString("| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Paths | %d |\n", s.Paths)
	fmt.Fprintf(&b, "| Extinct | %d (%s) |\n", s.Extinct, percent(s.Extinct, s.Paths))
	fmt.Fprintf(&b, "| Maxed out | %d |\n", s.MaxedOut)
	fmt.Fprintf(&b, "| Without initial infection | %d |\n", s.NoInitialInfection)
	fmt.Fprintf(&b, "| Bins (min / mean / max) | %d / %.1f / %d |\n", s.MinBins, s.MeanBins, s.MaxBins)
	for c, n := range s.NewInfections {
		fmt.Fprintf(&b, "| New infections (%s) | %d |\n", categoryName(c), n)
	}
	for c, n := range s.PositiveTests {
		fmt.Fprintf(&b, "| Positive tests (%s) | %d |\n", categoryName(c), n)
	}

	if len(s.MeanActive) > 0 {
		b.WriteString("\n## Mean active infections\n\n")
		fmt.Fprintf(&b, "Peak: %.3f\n\n", s.PeakActive)
		b.WriteString("| Bin | Mean active |\n|---:|---:|\n")
		for i, v := range s.MeanActive {
			if i == maxProfileRows {
				fmt.Fprintf(&b, "| ... | %d more bins |\n", len(s.MeanActive)-maxProfileRows)
				break
			}
			fmt.Fprintf(&b, "| %d | %.3f |\n", i-s.ZeroBin, v)
		}
	}
	return b.String()
}

// ContactMarkdown renders a contact summary as Markdown.
func ContactMarkdown(title string, s *ContactSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "Contact tracing file, revision %s.\n\n", s.Revision)

	b.WriteString("| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Records | %d |\n", s.Records)
	fmt.Fprintf(&b, "| Untraced | %d (%s) |\n", s.Untraced, percent(s.Untraced, s.Records))
	fmt.Fprintf(&b, "| Distinct children | %d |\n", s.DistinctChildren)
	fmt.Fprintf(&b, "| Traced contacts | %d (mean %.2f) |\n", s.TracedContacts, s.MeanTracedContacts)
	if s.Records > 0 {
		fmt.Fprintf(&b, "| First / last positive test (min) | %d / %d |\n", s.FirstTestTime, s.LastTestTime)
	}

	if len(s.PerDay) > 0 {
		b.WriteString("\n## Positive tests per day\n\n")
		b.WriteString("| Day | Tests |\n|---:|---:|\n")
		for i, d := range s.PerDay {
			if i == maxProfileRows {
				fmt.Fprintf(&b, "| ... | %d more days |\n", len(s.PerDay)-maxProfileRows)
				break
			}
			fmt.Fprintf(&b, "| %d | %d |\n", d.Day, d.Count)
		}
	}
	return b.String()
}

// HTML converts a Markdown report to sanitized HTML.
func HTML(markdown string) string {
	unsafeHTML := blackfriday.Run(
		[]byte(markdown),
		blackfriday.WithExtensions(
			blackfriday.CommonExtensions|
				blackfriday.AutoHeadingIDs,
		),
	)

	policy := bluemonday.UGCPolicy()
	policy.AllowAttrs("id").Matching(bluemonday.SpaceSeparatedTokens).OnElements("h1", "h2", "h3")
	policy.AllowAttrs("align").Matching(bluemonday.SpaceSeparatedTokens).OnElements("td", "th")

	return string(policy.SanitizeBytes(unsafeHTML))
}

func categoryName(c int) string {
	if c == 0 {
		return "primary"
	}
	return "secondary"
}

func percent(n, of int) string {
	if of == 0 {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", 100*float64(n)/float64(of))
}
