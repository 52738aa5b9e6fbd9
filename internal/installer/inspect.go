package installer

import "github.com/jstrand/preflight/internal/api"

// HaveLatestIndex reports whether the current version of the internal index
// exists in the snapshot. The index name encodes its schema version, so an
// exact name match is the whole check.
func HaveLatestIndex(state *api.ClusterState) bool {
	_, ok := state.Index(LatestIndexName)
	return ok
}

// HaveLatestAuditTemplate reports whether the audit template in the snapshot
// is at least the expected version. A newer-than-expected template still
// counts - an upgraded node elsewhere in the cluster may have installed it.
func HaveLatestAuditTemplate(state *api.ClusterState) bool {
	tmpl, ok := state.Template(AuditTemplateName)
	return ok && tmpl.Version >= AuditTemplateVersion
}
