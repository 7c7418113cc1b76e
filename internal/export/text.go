package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"rosdecode/pkg/ctout"
	"rosdecode/pkg/tlout"
)

// maxTextBins is the number of bins printed per timeline before eliding.
const maxTextBins = 12

// textWriter prints aligned columns for humans. The header row is written
// before the first record of each kind.
type textWriter struct {
	tw           *tabwriter.Writer
	timelineHead bool
	contactHead  bool
}

func newTextWriter(out io.Writer) *textWriter {
	return &textWriter{tw: tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)}
}

func (t *textWriter) WriteTimeline(rec *tlout.Record) error {
	if !t.timelineHead {
		t.timelineHead = true
		if _, err := fmt.Fprintln(t.tw, "PATH\tLAYOUT\tBINS\tT0\tEXTINCT\tMAXED\tTIMELINES"); err != nil {
			return err
		}
	}
	parts := make([]string, len(rec.Timelines))
	for i, tl := range rec.Timelines {
		parts[i] = formatBins(tl)
	}
	_, err := fmt.Fprintf(t.tw, "%d\t%s\t%d\t%d\t%t\t%t\t%s\n",
		rec.Index, rec.Variant.Layout, rec.BinCount(), rec.T0Index,
		rec.WentExtinct(), rec.MaxedOut(), strings.Join(parts, " | "))
	return err
}

func (t *textWriter) WriteContact(rec ctout.Record) error {
	if !t.contactHead {
		t.contactHead = true
		if _, err := fmt.Fprintln(t.tw, "TIME\tDAY\tPRESYM\tCHILD\tPARENT\tTRACED"); err != nil {
			return err
		}
	}
	parent := strconv.FormatInt(rec.ParentID, 10)
	if rec.Untraced {
		parent = "-"
	}
	_, err := fmt.Fprintf(t.tw, "%d\t%d\t%d\t%d\t%s\t%d\n",
		rec.PositiveTestTime, rec.PositiveTestPeriod(), rec.PresymptomaticDuration,
		rec.ChildID, parent, rec.TracedContactCount)
	return err
}

func (t *textWriter) Flush() error {
	return t.tw.Flush()
}

func formatBins(tl []uint32) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, v := range tl {
		if i == maxTextBins {
			fmt.Fprintf(&sb, " ...+%d", len(tl)-maxTextBins)
			break
		}
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(strconv.FormatUint(uint64(v), 10))
	}
	sb.WriteByte(']')
	return sb.String()
}
