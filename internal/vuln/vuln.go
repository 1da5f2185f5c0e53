// Package vuln turns a project's raw finding stream into open and
// trailing-window severity counts.
package vuln

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dynoinc/vulnreport/internal/gitlab"
)

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityUnknown  Severity = "unknown"
)

func ParseSeverity(s string) Severity {
	switch sev := Severity(strings.ToLower(strings.TrimSpace(s))); sev {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return sev
	default:
		return SeverityUnknown
	}
}

type State string

const (
	StateDetected  State = "detected"
	StateConfirmed State = "confirmed"
	StateDismissed State = "dismissed"
	StateResolved  State = "resolved"
	StateOther     State = "other"
)

func ParseState(s string) State {
	switch st := State(strings.ToLower(strings.TrimSpace(s))); st {
	case StateDetected, StateConfirmed, StateDismissed, StateResolved:
		return st
	default:
		return StateOther
	}
}

var ErrUnparsableTimestamp = errors.New("unparsable timestamp")

// Layouts without a zone are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999-0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp returns the instant in UTC or an error wrapping
// ErrUnparsableTimestamp.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrUnparsableTimestamp)
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrUnparsableTimestamp, s)
}

// Finding is a Vulnerability with its fields interpreted. CreatedErr is set
// when the creation timestamp could not be parsed.
type Finding struct {
	ID         int64
	Severity   Severity
	State      State
	CreatedAt  time.Time
	CreatedErr error
}

func FromAPI(v gitlab.Vulnerability) Finding {
	created, err := ParseTimestamp(v.CreatedAt)
	return Finding{
		ID:         v.ID,
		Severity:   ParseSeverity(v.Severity),
		State:      ParseState(v.State),
		CreatedAt:  created,
		CreatedErr: err,
	}
}
