package vuln

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/dynoinc/vulnreport/internal/gitlab"
)

type Source interface {
	ListVulnerabilities(ctx context.Context, projectID int64, state string) (iter.Seq[gitlab.Vulnerability], func() error)
}

const day = 24 * time.Hour

// Aggregate computes open and window counts for one project. Open counts
// come from a walk filtered to detected findings. Each window is a separate
// walk over findings in every state, counting those created at or after
// now minus the window. Walk failures never abort; they mark the result
// incomplete and keep whatever was counted.
func Aggregate(ctx context.Context, src Source, projectID int64, now time.Time, windows []int) ProjectCounts {
	pc := ProjectCounts{Counts: NewCounts(windows)}
	var errs []error
	fail := func(what string, err error) {
		pc.Incomplete = true
		pc.Failures = append(pc.Failures, fmt.Sprintf("%s: %v", what, err))
		errs = append(errs, fmt.Errorf("%s: %w", what, err))
		slog.WarnContext(ctx, "project walk incomplete", "project_id", projectID, "walk", what, "error", err)
	}

	open, errf := src.ListVulnerabilities(ctx, projectID, string(StateDetected))
	for v := range open {
		// The state filter is server side; re-check in case it was ignored.
		if ParseState(v.State) != StateDetected {
			continue
		}
		pc.Open.Add(ParseSeverity(v.Severity))
	}
	if err := errf(); err != nil {
		fail("open", err)
	}

	// Every window walks the same findings, so the skip count is taken per
	// walk and the largest one kept. IDs may be missing and cannot dedupe.
	walked := 0
	now = now.UTC()
	for _, w := range windows {
		if err := ctx.Err(); err != nil {
			fail(fmt.Sprintf("%dd", w), err)
			continue
		}

		cutoff := now.Add(-time.Duration(w) * day)
		var sc SeverityCounts
		skipped := 0
		all, errf := src.ListVulnerabilities(ctx, projectID, "")
		for v := range all {
			f := FromAPI(v)
			if f.CreatedErr != nil {
				skipped++
				if walked == 0 {
					slog.DebugContext(ctx, "excluding finding from window counts", "project_id", projectID, "vulnerability_id", f.ID, "error", f.CreatedErr)
				}
				continue
			}
			if f.CreatedAt.Before(cutoff) {
				continue
			}
			sc.Add(f.Severity)
		}
		pc.Windows[w] = sc
		pc.SkippedTimestamps = max(pc.SkippedTimestamps, skipped)
		walked++
		if err := errf(); err != nil {
			fail(fmt.Sprintf("%dd", w), err)
		}
	}

	pc.Err = errors.Join(errs...)
	return pc
}
