package render

import (
	"bufio"
	"fmt"
	"io"

	"github.com/dynoinc/vulnreport/internal/report"
)

// Text writes the summary, the percent change table and one table per
// group, followed by footnotes for incomplete rows.
func Text(w io.Writer, rep *report.Report) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "Vulnerability report generated %s\n\n", rep.GeneratedAt.Format("2006-01-02 15:04:05 MST"))

	fmt.Fprintln(bw, "Summary")
	summaryTable(bw, rep)

	fmt.Fprintln(bw, "\nPercent change (window vs open)")
	changeTable(bw, rep)
	fmt.Fprintln(bw, undefinedNote)

	for _, g := range rep.Groups {
		fmt.Fprintf(bw, "\nGroup: %s\n", g.Name)
		groupTable(bw, g, rep.Windows)
	}

	if notes := footnotes(rep); len(notes) > 0 {
		fmt.Fprintf(bw, "\n%s incomplete: counts cover only what was fetched\n", incompleteMarker)
		for _, n := range notes {
			fmt.Fprintf(bw, "  %s\n", n)
		}
	}

	return bw.Flush()
}
