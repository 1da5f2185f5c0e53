package render

import (
	"encoding/csv"
	"io"

	"github.com/dynoinc/vulnreport/internal/report"
)

// Spreadsheet apps need the BOM to read the file as UTF-8.
const utf8BOM = "\ufeff"

// CSV writes the same sections as Text, separated by blank rows.
func CSV(w io.Writer, rep *report.Report) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	write := func(rows ...[]string) {
		for _, r := range rows {
			cw.Write(r)
		}
	}

	write([]string{"Summary"}, countHeader("Group", rep.Windows))
	for _, g := range rep.Groups {
		write(countCells(g.Name, summaryIncomplete(g.Summary), g.Summary.Counts, rep.Windows))
	}

	write([]string{}, []string{"Percent change"}, changeHeader(rep.Windows))
	for _, row := range rep.Changes {
		write(changeCells(row))
	}
	write([]string{undefinedNote})

	for _, g := range rep.Groups {
		write([]string{}, []string{"Group", g.Name}, countHeader("ProjectName", rep.Windows))
		for _, p := range g.Projects {
			write(countCells(p.Name, p.Incomplete, p.Counts, rep.Windows))
		}
		write(countCells(g.Name, summaryIncomplete(g.Summary), g.Summary.Counts, rep.Windows))
	}

	if notes := footnotes(rep); len(notes) > 0 {
		write([]string{}, []string{incompleteMarker + " incomplete"})
		for _, n := range notes {
			write([]string{n})
		}
	}

	cw.Flush()
	return cw.Error()
}
