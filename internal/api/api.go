package api

import (
	"errors"
	"fmt"
	"time"
)

// ClusterState is a point-in-time snapshot of the metadata registry.
// Readers must treat it as immutable and potentially stale relative to metad.
type ClusterState struct {
	Revision  uint64                      `json:"revision"`
	Indices   map[string]IndexMetadata    `json:"indices,omitempty"`
	Templates map[string]TemplateMetadata `json:"templates,omitempty"`
}

// Index returns the metadata for a named index or false when it doesn't exist.
// Safe to call on a nil snapshot.
func (s *ClusterState) Index(name string) (IndexMetadata, bool) {
	if s == nil {
		return IndexMetadata{}, false
	}
	meta, ok := s.Indices[name]
	return meta, ok
}

// Template returns the metadata for a named template or false when it doesn't exist.
// Safe to call on a nil snapshot.
func (s *ClusterState) Template(name string) (TemplateMetadata, bool) {
	if s == nil {
		return TemplateMetadata{}, false
	}
	meta, ok := s.Templates[name]
	return meta, ok
}

type IndexMetadata struct {
	Name     string        `json:"name"` // encodes the schema version
	Created  time.Time     `json:"created"`
	Settings IndexSettings `json:"settings"`
}

type TemplateMetadata struct {
	Name     string   `json:"name"`
	Version  int      `json:"version"`
	Patterns []string `json:"patterns"`
}

type IndexSettings struct {
	Shards             int    `json:"shards"`
	Replicas           int    `json:"replicas"`
	AutoExpandReplicas string `json:"autoExpandReplicas,omitempty"`
}

// IndexSpec is the body of a create-index request: settings plus a flat
// field name -> field type schema.
type IndexSpec struct {
	Settings IndexSettings     `json:"settings"`
	Schema   map[string]string `json:"schema,omitempty"`
}

// TemplateSpec is the body of a put-template request. Version is embedded in
// the template's metadata and is how installers decide whether it is current.
type TemplateSpec struct {
	Patterns []string          `json:"patterns"`
	Version  int               `json:"version"`
	Settings IndexSettings     `json:"settings"`
	Schema   map[string]string `json:"schema,omitempty"`
}

// AuditEntry records one mutation of the metadata registry.
type AuditEntry struct {
	ID       string    `json:"id"`
	Time     time.Time `json:"time"`
	Actor    string    `json:"actor"` // client cert fingerprint, or "local"
	Action   string    `json:"action"`
	Resource string    `json:"resource"`
}

// AlreadyExistsError is returned by create operations when the resource was
// present before the request - usually because another installer won the race.
type AlreadyExistsError struct {
	Resource string // "index" or "template"
	Name     string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Resource, e.Name)
}

// IsAlreadyExists reports whether err is an already-exists failure anywhere
// in its chain.
func IsAlreadyExists(err error) bool {
	e := &AlreadyExistsError{}
	return errors.As(err, &e)
}
