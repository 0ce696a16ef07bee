package fsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindPathFrom(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ConfigDir), 0755))
	target := filepath.Join(root, ConfigDir, "bidi.yaml")
	require.NoError(t, os.WriteFile(target, []byte("server:\n  port: 1\n"), 0644))
	deep := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(deep, 0755))

	assert.Equal(t, target, FindPathFrom(deep, filepath.Join(ConfigDir, "bidi.yaml")))
	assert.Equal(t, "", FindPathFrom(deep, "no-such-file.yaml"))
	assert.Equal(t, "", FindPathFrom("", "bidi.yaml"))
	assert.True(t, Exists(target))
	assert.False(t, Exists(filepath.Join(root, "missing")))
}
