// Package report runs the per-group fetch and aggregation and builds the
// tables handed to presentation.
package report

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/dynoinc/vulnreport/internal/gitlab"
	"github.com/dynoinc/vulnreport/internal/groups"
	"github.com/dynoinc/vulnreport/internal/metrics"
	"github.com/dynoinc/vulnreport/internal/otel/semconv"
	"github.com/dynoinc/vulnreport/internal/vuln"
)

//go:generate go tool mockgen -destination=mocks/source.go -package=mocks . Source

type Source interface {
	vuln.Source
	ListProjects(ctx context.Context, groupID string, filter gitlab.ProjectFilter) (iter.Seq[gitlab.Project], func() error)
}

type GroupReport struct {
	Name     string       `json:"name"`
	ID       string       `json:"id"`
	Projects []ProjectRow `json:"projects"`
	Summary  GroupSummary `json:"summary"`

	ListingFailure string `json:"listing_failure,omitempty"`
	ListingErr     error  `json:"-"`
}

type Report struct {
	GeneratedAt time.Time          `json:"generated_at"`
	Windows     []int              `json:"windows"`
	Groups      []GroupReport      `json:"groups"`
	Changes     []PercentChangeRow `json:"percent_change"`
}

// Incomplete reports whether any group or project row is partial.
func (r *Report) Incomplete() bool {
	for _, g := range r.Groups {
		if g.Summary.Incomplete || g.Summary.ListingIncomplete {
			return true
		}
	}
	return false
}

type Runner struct {
	Source      Source
	Windows     []int
	Concurrency int
	Filter      gitlab.ProjectFilter
	Now         func() time.Time
	Metrics     *metrics.Metrics
}

var tracer = otel.Tracer("github.com/dynoinc/vulnreport/internal/report")

// Run lists each group's projects and aggregates every project with at most
// Concurrency fetches in flight. It always returns a report; failures show
// up as incomplete rows. Canceling ctx makes the remaining work finish
// promptly as incomplete.
func (r *Runner) Run(ctx context.Context, gs []groups.Group) *Report {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	limit := r.Concurrency
	if limit <= 0 {
		limit = 1
	}

	rep := &Report{
		GeneratedAt: now().UTC(),
		Windows:     r.Windows,
		Groups:      make([]GroupReport, len(gs)),
	}

	ctx, span := tracer.Start(ctx, "report.Run")
	defer span.End()

	// Each worker owns exactly one slot of rep.Groups or of a group's
	// Projects, so no locking is needed.
	var listing errgroup.Group
	listing.SetLimit(limit)
	for i, g := range gs {
		listing.Go(func() error {
			rep.Groups[i] = r.listGroup(ctx, g)
			return nil
		})
	}
	listing.Wait()

	var work errgroup.Group
	work.SetLimit(limit)
	for gi := range rep.Groups {
		gr := &rep.Groups[gi]
		for pi := range gr.Projects {
			work.Go(func() error {
				r.aggregateProject(ctx, gr, &gr.Projects[pi], rep.GeneratedAt)
				return nil
			})
		}
	}
	work.Wait()

	for gi := range rep.Groups {
		gr := &rep.Groups[gi]
		listingIncomplete := gr.ListingErr != nil
		gr.Summary = Rollup(gr.Projects, r.Windows)
		gr.Summary.ListingIncomplete = listingIncomplete
		r.record(gr)

		changes := ChangesFor(gr.Summary, r.Windows)
		changes.Group = gr.Name
		rep.Changes = append(rep.Changes, changes)
	}

	span.SetAttributes(semconv.IncompleteKey.Bool(rep.Incomplete()))
	return rep
}

func (r *Runner) listGroup(ctx context.Context, g groups.Group) GroupReport {
	gr := GroupReport{Name: strings.ToLower(g.Name), ID: g.ID}

	ctx, span := tracer.Start(ctx, "report.listGroup", trace.WithAttributes(
		semconv.GitLabGroupIDKey.String(g.ID),
		semconv.GitLabGroupNameKey.String(gr.Name),
	))
	defer span.End()

	projects, errf := r.Source.ListProjects(ctx, g.ID, r.Filter)
	for p := range projects {
		gr.Projects = append(gr.Projects, ProjectRow{Name: strings.ToLower(p.Name), ID: p.ID})
	}
	if err := errf(); err != nil {
		gr.ListingErr = err
		gr.ListingFailure = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.WarnContext(ctx, "project listing incomplete", "group", gr.Name, "group_id", g.ID, "projects", len(gr.Projects), "error", err)
	}

	span.SetAttributes(semconv.ProjectCountKey.Int(len(gr.Projects)))
	slog.InfoContext(ctx, "listed projects", "group", gr.Name, "projects", len(gr.Projects))
	return gr
}

func (r *Runner) aggregateProject(ctx context.Context, gr *GroupReport, row *ProjectRow, now time.Time) {
	ctx, span := tracer.Start(ctx, "report.aggregateProject", trace.WithAttributes(
		semconv.GitLabGroupIDKey.String(gr.ID),
		semconv.GitLabProjectIDKey.Int64(row.ID),
	))
	defer span.End()

	if err := ctx.Err(); err != nil {
		row.ProjectCounts = vuln.ProjectCounts{
			Counts:     vuln.NewCounts(r.Windows),
			Incomplete: true,
			Failures:   []string{fmt.Sprintf("not started: %v", err)},
			Err:        err,
		}
	} else {
		start := time.Now()
		row.ProjectCounts = vuln.Aggregate(ctx, r.Source, row.ID, now, r.Windows)
		slog.DebugContext(ctx, "aggregated project", "group", gr.Name, "project", row.Name, "duration", time.Since(start), "incomplete", row.Incomplete)
	}

	span.SetAttributes(semconv.IncompleteKey.Bool(row.Incomplete))
	if row.Err != nil {
		span.RecordError(row.Err)
		span.SetStatus(codes.Error, "project incomplete")
	}
}

func (r *Runner) record(gr *GroupReport) {
	r.Metrics.SetOpen(gr.Name, string(vuln.SeverityCritical), gr.Summary.Open.Critical)
	r.Metrics.SetOpen(gr.Name, string(vuln.SeverityHigh), gr.Summary.Open.High)
	for _, w := range r.Windows {
		wc := gr.Summary.Window(w)
		r.Metrics.SetWindow(gr.Name, w, string(vuln.SeverityCritical), wc.Critical)
		r.Metrics.SetWindow(gr.Name, w, string(vuln.SeverityHigh), wc.High)
	}
	for range gr.Summary.IncompleteProjects {
		r.Metrics.ProjectIncomplete(gr.Name)
	}
}
