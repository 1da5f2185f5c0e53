package report

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/dynoinc/vulnreport/internal/vuln"
)

type ProjectRow struct {
	Name string `json:"name"`
	ID   int64  `json:"id"`
	vuln.ProjectCounts
}

// GroupSummary is the field-wise sum of a group's project rows. Incomplete
// rows still contribute what they counted; IncompleteProjects says how many
// of them there were so a failed group never reads as a clean zero.
type GroupSummary struct {
	vuln.Counts
	Incomplete         bool `json:"incomplete"`
	IncompleteProjects int  `json:"incomplete_projects"`
	ListingIncomplete  bool `json:"listing_incomplete,omitempty"`
}

// Rollup sums rows into a summary carrying an entry for every window, so
// a group without projects has the same shape as any other.
func Rollup(rows []ProjectRow, windows []int) GroupSummary {
	s := GroupSummary{Counts: vuln.NewCounts(windows)}
	for _, row := range rows {
		s.Counts.Add(row.Counts)
		if row.Incomplete {
			s.Incomplete = true
			s.IncompleteProjects++
		}
	}
	return s
}

// Change is a relative delta between a window count and the current count.
// A zero Change is undefined, not zero percent.
type Change struct {
	Fraction float64
	Defined  bool
}

// PercentChange returns (window-current)/current. It is undefined when
// current is zero and window is not, and exactly zero when both are zero.
func PercentChange(window, current int) Change {
	switch {
	case current == 0 && window == 0:
		return Change{Defined: true}
	case current == 0:
		return Change{}
	default:
		return Change{Fraction: float64(window-current) / float64(current), Defined: true}
	}
}

func (c Change) String() string {
	if !c.Defined {
		return "-"
	}
	if math.Abs(c.Fraction) < 0.00005 {
		return "0.00%"
	}
	return fmt.Sprintf("%+.2f%%", c.Fraction*100)
}

func (c Change) MarshalJSON() ([]byte, error) {
	if !c.Defined {
		return []byte(`"undefined"`), nil
	}
	return json.Marshal(c.Fraction)
}

func (c *Change) UnmarshalJSON(data []byte) error {
	if string(data) == `"undefined"` {
		*c = Change{}
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("percent change: %w", err)
	}
	*c = Change{Fraction: f, Defined: true}
	return nil
}

type WindowChange struct {
	Days     int    `json:"days"`
	Critical Change `json:"critical"`
	High     Change `json:"high"`
}

type PercentChangeRow struct {
	Group      string         `json:"group"`
	Incomplete bool           `json:"incomplete"`
	Windows    []WindowChange `json:"windows"`
}

// ChangesFor compares each window of s with its open counts, in the order
// of windows.
func ChangesFor(s GroupSummary, windows []int) PercentChangeRow {
	row := PercentChangeRow{Incomplete: s.Incomplete || s.ListingIncomplete}
	for _, w := range windows {
		wc := s.Window(w)
		row.Windows = append(row.Windows, WindowChange{
			Days:     w,
			Critical: PercentChange(wc.Critical, s.Open.Critical),
			High:     PercentChange(wc.High, s.Open.High),
		})
	}
	return row
}
