package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jstrand/preflight/internal/api"
	"github.com/jstrand/preflight/internal/concurrency"
)

// metadataStore is the authoritative registry of indices and templates.
// It is the arbiter of creation races: the first CreateIndex for a name wins
// and every later one fails with api.AlreadyExistsError.
type metadataStore struct {
	lock      sync.Mutex
	file      string
	revision  uint64
	indices   map[string]api.IndexMetadata
	templates map[string]api.TemplateMetadata

	// rev mirrors revision for watchers
	rev concurrency.Cell[uint64]
}

func newMetadataStore(file string) (*metadataStore, error) {
	m := &metadataStore{
		file:      file,
		indices:   map[string]api.IndexMetadata{},
		templates: map[string]api.TemplateMetadata{},
	}

	var persisted persistedState
	_, err := toml.DecodeFile(file, &persisted)
	if os.IsNotExist(err) {
		return m, nil // fresh registry
	}
	if err != nil {
		return nil, fmt.Errorf("decoding metadata file: %w", err)
	}

	m.revision = persisted.Revision
	if persisted.Indices != nil {
		m.indices = persisted.Indices
	}
	if persisted.Templates != nil {
		m.templates = persisted.Templates
	}
	return m, nil
}

// State returns an immutable snapshot of the registry.
func (m *metadataStore) State() *api.ClusterState {
	m.lock.Lock()
	defer m.lock.Unlock()

	state := &api.ClusterState{
		Revision:  m.revision,
		Indices:   make(map[string]api.IndexMetadata, len(m.indices)),
		Templates: make(map[string]api.TemplateMetadata, len(m.templates)),
	}
	for name, meta := range m.indices {
		state.Indices[name] = meta
	}
	for name, meta := range m.templates {
		state.Templates[name] = meta
	}
	return state
}

// Watch signals whenever the registry changes.
func (m *metadataStore) Watch(ctx context.Context) <-chan struct{} {
	return m.rev.Watch(ctx)
}

func (m *metadataStore) CreateIndex(name string, spec api.IndexSpec) (api.IndexMetadata, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if _, ok := m.indices[name]; ok {
		return api.IndexMetadata{}, &api.AlreadyExistsError{Resource: "index", Name: name}
	}

	meta := api.IndexMetadata{
		Name:     name,
		Created:  time.Now().UTC(),
		Settings: spec.Settings,
	}
	m.indices[name] = meta

	if err := m.commitLocked(); err != nil {
		delete(m.indices, name)
		return api.IndexMetadata{}, err
	}
	return meta, nil
}

// PutTemplate installs or upgrades a template. Putting a version at or below
// the stored one fails with api.AlreadyExistsError so racing installers see
// the same outcome as racing index creates.
func (m *metadataStore) PutTemplate(name string, spec api.TemplateSpec) (created bool, err error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	prev, existed := m.templates[name]
	if existed && prev.Version >= spec.Version {
		return false, &api.AlreadyExistsError{Resource: "template", Name: name}
	}

	m.templates[name] = api.TemplateMetadata{
		Name:     name,
		Version:  spec.Version,
		Patterns: spec.Patterns,
	}

	if err := m.commitLocked(); err != nil {
		if existed {
			m.templates[name] = prev
		} else {
			delete(m.templates, name)
		}
		return false, err
	}
	return !existed, nil
}

func (m *metadataStore) commitLocked() error {
	m.revision++

	buf := &bytes.Buffer{}
	err := toml.NewEncoder(buf).Encode(&persistedState{
		Revision:  m.revision,
		Indices:   m.indices,
		Templates: m.templates,
	})
	if err != nil {
		m.revision--
		return fmt.Errorf("encoding metadata: %w", err)
	}
	if err := os.WriteFile(m.file, buf.Bytes(), 0644); err != nil {
		m.revision--
		return fmt.Errorf("writing metadata file: %w", err)
	}

	m.rev.Swap(m.revision)
	return nil
}

type persistedState struct {
	Revision  uint64                          `toml:"revision"`
	Indices   map[string]api.IndexMetadata    `toml:"index"`
	Templates map[string]api.TemplateMetadata `toml:"template"`
}
