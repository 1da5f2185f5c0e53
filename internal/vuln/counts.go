package vuln

import (
	"maps"
	"slices"
)

// SeverityCounts tallies the two severities the report tracks.
type SeverityCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
}

// Add counts one finding of severity s. Other severities are ignored and
// reported as not counted.
func (c *SeverityCounts) Add(s Severity) bool {
	switch s {
	case SeverityCritical:
		c.Critical++
	case SeverityHigh:
		c.High++
	default:
		return false
	}
	return true
}

func (c SeverityCounts) Plus(o SeverityCounts) SeverityCounts {
	return SeverityCounts{Critical: c.Critical + o.Critical, High: c.High + o.High}
}

func (c SeverityCounts) IsZero() bool {
	return c.Critical == 0 && c.High == 0
}

// Counts holds open counts plus one entry per trailing window, keyed by
// window length in days.
type Counts struct {
	Open    SeverityCounts         `json:"open"`
	Windows map[int]SeverityCounts `json:"windows"`
}

func NewCounts(windows []int) Counts {
	c := Counts{Windows: make(map[int]SeverityCounts, len(windows))}
	for _, w := range windows {
		c.Windows[w] = SeverityCounts{}
	}
	return c
}

func (c Counts) Window(days int) SeverityCounts {
	return c.Windows[days]
}

// WindowDays returns the window lengths in ascending order.
func (c Counts) WindowDays() []int {
	return slices.Sorted(maps.Keys(c.Windows))
}

// Add sums o into c field by field.
func (c *Counts) Add(o Counts) {
	c.Open = c.Open.Plus(o.Open)
	if c.Windows == nil {
		c.Windows = make(map[int]SeverityCounts, len(o.Windows))
	}
	for w, sc := range o.Windows {
		c.Windows[w] = c.Windows[w].Plus(sc)
	}
}

// ProjectCounts is the aggregation result for one project. Incomplete is set
// when any walk stopped early; the counts then cover only what was fetched.
type ProjectCounts struct {
	Counts
	Incomplete        bool     `json:"incomplete"`
	Failures          []string `json:"failures,omitempty"`
	SkippedTimestamps int      `json:"skipped_timestamps,omitempty"`
	Err               error    `json:"-"`
}
