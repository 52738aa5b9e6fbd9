package rpc

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCertificate(t *testing.T) {
	dir := t.TempDir()

	cert, fingerprint, err := LoadCertificate(dir)
	require.NoError(t, err)
	require.NotNil(t, cert.Leaf)
	assert.Len(t, fingerprint, 64)

	t.Run("loading again returns the same identity", func(t *testing.T) {
		_, again, err := LoadCertificate(dir)
		require.NoError(t, err)
		assert.Equal(t, fingerprint, again)
	})

	t.Run("corrupt key is replaced", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "tls", "key.pem"), []byte("garbage"), 0600))

		_, regenerated, err := LoadCertificate(dir)
		require.NoError(t, err)
		assert.NotEqual(t, fingerprint, regenerated)
	})
}
