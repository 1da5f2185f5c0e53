// Standardized attribute keys and values for use in all OpenTelemetry signals
// Before adding a new attribute, first check to see if an attribute is already defined
// in the OpenTelemetry spec (https://opentelemetry.io/docs/specs/semconv/)
package semconv

import "go.opentelemetry.io/otel/attribute"

const (
	// GitLab-specific attributes
	GitLabGroupIDKey   = attribute.Key("gitlab.group.id")
	GitLabGroupNameKey = attribute.Key("gitlab.group.name")
	GitLabProjectIDKey = attribute.Key("gitlab.project.id")

	// Application-specific attributes
	ForceTraceKey   = attribute.Key("force_trace")
	IncompleteKey   = attribute.Key("vulnreport.incomplete")
	ProjectCountKey = attribute.Key("vulnreport.project.count")
)
