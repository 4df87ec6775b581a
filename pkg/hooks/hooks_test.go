package hooks

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ngld/knossos/packages/client-build/pkg"
)

func testContext(t *testing.T) context.Context {
	t.Helper()

	logger := zerolog.Nop()
	return pkg.WithLogger(context.Background(), &logger)
}

func TestRunNoSnippets(t *testing.T) {
	err := Run(testContext(t), t.TempDir(), nil)
	assert.NoError(t, err)
}

func TestRunMkdir(t *testing.T) {
	root := t.TempDir()

	err := Run(testContext(t), root, []string{"mkdir -p dist/.tmp/deep"})
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(root, "dist", ".tmp", "deep"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestRunRm(t *testing.T) {
	root := t.TempDir()
	tmpDir := filepath.Join(root, "dist", ".tmp")
	require.NoError(t, os.MkdirAll(tmpDir, 0770))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "junk"), []byte("x"), 0660))

	err := Run(testContext(t), root, []string{"rm -rf dist/.tmp"})
	require.NoError(t, err)

	_, err = os.Stat(tmpDir)
	assert.True(t, os.IsNotExist(err))
}

func TestRunRmMissingWithForce(t *testing.T) {
	err := Run(testContext(t), t.TempDir(), []string{"rm -rf does/not/exist"})
	assert.NoError(t, err)
}

func TestRunRmDirectoryWithoutRecursive(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "dist"), 0770))

	err := Run(testContext(t), root, []string{"rm dist"})
	assert.Error(t, err)
}

func TestRunMv(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("payload"), 0660))

	err := Run(testContext(t), root, []string{"mv a.txt b.txt"})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	_, err = os.Stat(filepath.Join(root, "a.txt"))
	assert.True(t, os.IsNotExist(err))
}

func TestRunMvIntoDirectory(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("a"), 0660))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.txt"), []byte("b"), 0660))
	require.NoError(t, os.Mkdir(filepath.Join(root, "dest"), 0770))

	err := Run(testContext(t), root, []string{"mv a.txt b.txt dest"})
	require.NoError(t, err)

	for _, name := range []string{"a.txt", "b.txt"} {
		_, err = os.Stat(filepath.Join(root, "dest", name))
		assert.NoError(t, err)
	}
}

func TestRunAbortsOnFailure(t *testing.T) {
	root := t.TempDir()

	err := Run(testContext(t), root, []string{
		"rm nope.txt",
		"mkdir never",
	})
	require.Error(t, err)

	_, err = os.Stat(filepath.Join(root, "never"))
	assert.True(t, os.IsNotExist(err), "later snippets must not run after a failure")
}

func TestRunShellSyntax(t *testing.T) {
	root := t.TempDir()

	err := Run(testContext(t), root, []string{"mkdir one && mkdir two"})
	require.NoError(t, err)

	for _, name := range []string{"one", "two"} {
		_, err = os.Stat(filepath.Join(root, name))
		assert.NoError(t, err)
	}
}
