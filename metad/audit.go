package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jstrand/preflight/internal/api"
)

const auditRetention = 256

// auditLog records registry mutations, append-only as JSON lines. The most
// recent entries are kept in memory for the API.
type auditLog struct {
	lock   sync.Mutex
	file   *os.File
	recent []api.AuditEntry
}

func newAuditLog(path string) (*auditLog, error) {
	a := &auditLog{}

	if buf, err := os.ReadFile(path); err == nil {
		for dec := json.NewDecoder(bytes.NewReader(buf)); dec.More(); {
			entry := api.AuditEntry{}
			if err := dec.Decode(&entry); err != nil {
				break // truncated tail after a crash - keep what parsed
			}
			a.appendRecent(entry)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	a.file = file

	return a, nil
}

// Record writes one entry. Failures are logged, not surfaced - the audit
// trail must never block registry mutations.
func (a *auditLog) Record(actor, action, resource string) {
	entry := api.AuditEntry{
		ID:       uuid.Must(uuid.NewRandom()).String(),
		Time:     time.Now().UTC(),
		Actor:    actor,
		Action:   action,
		Resource: resource,
	}

	a.lock.Lock()
	defer a.lock.Unlock()

	a.appendRecent(entry)
	if err := json.NewEncoder(a.file).Encode(&entry); err != nil {
		log.Printf("error writing audit entry: %s", err)
	}
}

// Recent returns the retained entries, newest last.
func (a *auditLog) Recent() []api.AuditEntry {
	a.lock.Lock()
	defer a.lock.Unlock()
	return append([]api.AuditEntry{}, a.recent...)
}

func (a *auditLog) appendRecent(entry api.AuditEntry) {
	a.recent = append(a.recent, entry)
	if len(a.recent) > auditRetention {
		a.recent = a.recent[len(a.recent)-auditRetention:]
	}
}
