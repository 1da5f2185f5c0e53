package gitlab

import (
	"context"
	"iter"
	"net/url"
	"strconv"
)

type Project struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	PathWithNamespace string `json:"path_with_namespace"`
	Archived          bool   `json:"archived"`
}

// Vulnerability is a finding as returned by the API. Fields are kept as
// strings; interpretation belongs to the aggregator.
type Vulnerability struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Severity  string `json:"severity"`
	State     string `json:"state"`
	CreatedAt string `json:"created_at"`
}

type ProjectFilter struct {
	IncludeSubgroups bool
	IncludeArchived  bool
}

func (c *Client) ListProjects(ctx context.Context, groupID string, filter ProjectFilter) (iter.Seq[Project], func() error) {
	q := url.Values{}
	q.Set("include_subgroups", strconv.FormatBool(filter.IncludeSubgroups))
	if !filter.IncludeArchived {
		q.Set("archived", "false")
	}

	return Walk[Project](ctx, c, "groups/"+url.PathEscape(groupID)+"/projects", c.cfg.PerPage, q)
}

// ListVulnerabilities walks a project's findings. An empty state returns
// findings in every lifecycle state.
func (c *Client) ListVulnerabilities(ctx context.Context, projectID int64, state string) (iter.Seq[Vulnerability], func() error) {
	q := url.Values{}
	if state != "" {
		q.Set("state", state)
	}

	return Walk[Vulnerability](ctx, c, "projects/"+strconv.FormatInt(projectID, 10)+"/vulnerabilities", c.cfg.PerPage, q)
}
