package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLogRoundtrip(t *testing.T) {
	file := filepath.Join(t.TempDir(), "audit.log")

	audit, err := newAuditLog(file)
	require.NoError(t, err)
	audit.Record("test-client", "create-index", "test-index")
	audit.Record("test-client", "put-template", "test-template")

	entries := audit.Recent()
	require.Len(t, entries, 2)
	assert.NotEqual(t, entries[0].ID, entries[1].ID)
	assert.Equal(t, "create-index", entries[0].Action)
	assert.Equal(t, "put-template", entries[1].Action)

	// a new log over the same file picks up the prior entries
	reloaded, err := newAuditLog(file)
	require.NoError(t, err)
	recovered := reloaded.Recent()
	require.Len(t, recovered, 2)
	assert.Equal(t, entries[0].ID, recovered[0].ID)
	assert.Equal(t, entries[1].ID, recovered[1].ID)
	assert.Equal(t, "put-template", recovered[1].Action)
}

func TestAuditLogRetention(t *testing.T) {
	audit, err := newAuditLog(filepath.Join(t.TempDir(), "audit.log"))
	require.NoError(t, err)

	for i := 0; i < auditRetention+10; i++ {
		audit.Record("test-client", "create-index", "test-index")
	}
	assert.Len(t, audit.Recent(), auditRetention)
}
