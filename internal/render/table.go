// Package render writes a report as text tables, CSV, JSON or Slack blocks.
package render

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/dynoinc/vulnreport/internal/report"
	"github.com/dynoinc/vulnreport/internal/vuln"
)

const (
	incompleteMarker = "*"
	undefinedNote    = "- means no open findings to compare against while the window has some."
)

func countHeader(first string, windows []int) []string {
	h := []string{first, "Critical", "High"}
	for _, w := range windows {
		h = append(h, fmt.Sprintf("%dDayCritical", w), fmt.Sprintf("%dDayHigh", w))
	}
	return h
}

func changeHeader(windows []int) []string {
	h := []string{"Group"}
	for _, w := range windows {
		h = append(h, fmt.Sprintf("%dDay Critical %% change", w), fmt.Sprintf("%dDay High %% change", w))
	}
	return h
}

func countCells(name string, incomplete bool, c vuln.Counts, windows []int) []string {
	if incomplete {
		name += incompleteMarker
	}
	cells := []string{name, strconv.Itoa(c.Open.Critical), strconv.Itoa(c.Open.High)}
	for _, w := range windows {
		wc := c.Window(w)
		cells = append(cells, strconv.Itoa(wc.Critical), strconv.Itoa(wc.High))
	}
	return cells
}

func changeCells(row report.PercentChangeRow) []string {
	name := row.Group
	if row.Incomplete {
		name += incompleteMarker
	}
	cells := []string{name}
	for _, wc := range row.Windows {
		cells = append(cells, wc.Critical.String(), wc.High.String())
	}
	return cells
}

func summaryIncomplete(s report.GroupSummary) bool {
	return s.Incomplete || s.ListingIncomplete
}

// footnotes lists every partial group and project with what failed.
func footnotes(rep *report.Report) []string {
	var notes []string
	for _, g := range rep.Groups {
		if g.ListingFailure != "" {
			notes = append(notes, fmt.Sprintf("%s%s project listing: %s", g.Name, incompleteMarker, g.ListingFailure))
		}
		for _, p := range g.Projects {
			if p.Incomplete {
				notes = append(notes, fmt.Sprintf("%s/%s%s %s", g.Name, p.Name, incompleteMarker, strings.Join(p.Failures, "; ")))
			}
		}
	}
	return notes
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetBorders(tablewriter.Border{Left: true, Top: true, Right: true, Bottom: true})
	table.SetCenterSeparator("|")
	table.SetColumnSeparator("|")
	table.SetRowSeparator("-")
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)

	alignments := make([]int, len(header))
	alignments[0] = tablewriter.ALIGN_LEFT
	for i := 1; i < len(alignments); i++ {
		alignments[i] = tablewriter.ALIGN_RIGHT
	}
	table.SetColumnAlignment(alignments)
	return table
}

func summaryTable(w io.Writer, rep *report.Report) {
	table := newTable(w, countHeader("Group", rep.Windows))
	for _, g := range rep.Groups {
		table.Append(countCells(g.Name, summaryIncomplete(g.Summary), g.Summary.Counts, rep.Windows))
	}
	table.Render()
}

func changeTable(w io.Writer, rep *report.Report) {
	table := newTable(w, changeHeader(rep.Windows))
	for _, row := range rep.Changes {
		table.Append(changeCells(row))
	}
	table.Render()
}

func groupTable(w io.Writer, g report.GroupReport, windows []int) {
	table := newTable(w, countHeader("ProjectName", windows))
	for _, p := range g.Projects {
		table.Append(countCells(p.Name, p.Incomplete, p.Counts, windows))
	}
	table.SetFooter(countCells(g.Name, summaryIncomplete(g.Summary), g.Summary.Counts, windows))
	table.Render()
}
