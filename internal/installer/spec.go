// Package installer guarantees that the preflight internal index and the
// audit index template exist in the metadata registry exactly once, even when
// several nodes attempt installation concurrently at startup.
package installer

import "github.com/jstrand/preflight/internal/api"

const (
	internalIndexBase = ".preflight-internal"

	// LatestIndexName changes whenever the internal schema does - the suffix
	// is the schema version, so existence of the name implies the version.
	LatestIndexName = internalIndexBase + "-003"

	// AuditTemplateName governs creation of future audit indices. Unlike the
	// internal index it keeps a stable name and embeds its version in metadata.
	AuditTemplateName    = ".preflight-audit"
	AuditTemplateVersion = 2

	auditIndexPattern = ".preflight-audit-*"
)

// InternalIndexSpec returns the settings and schema for the current version
// of the internal index.
func InternalIndexSpec() api.IndexSpec {
	return api.IndexSpec{
		Settings: api.IndexSettings{
			Shards:             1,
			Replicas:           0,
			AutoExpandReplicas: "0-1",
		},
		Schema: map[string]string{
			"id":       "keyword",
			"kind":     "keyword",
			"revision": "long",
			"updated":  "date",
			"config":   "text",
		},
	}
}

// AuditTemplateSpec returns the template applied to audit indices as they are
// rolled over.
func AuditTemplateSpec() api.TemplateSpec {
	return api.TemplateSpec{
		Patterns: []string{auditIndexPattern},
		Version:  AuditTemplateVersion,
		Settings: api.IndexSettings{
			Shards:             1,
			Replicas:           0,
			AutoExpandReplicas: "0-1",
		},
		Schema: map[string]string{
			"id":       "keyword",
			"actor":    "keyword",
			"action":   "keyword",
			"resource": "keyword",
			"time":     "date",
			"message":  "text",
		},
	}
}
