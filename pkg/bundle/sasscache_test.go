package bundle

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSass(t *testing.T, dir, name, contents string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0770))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0660))
	return path
}

func TestCollectSassFiles(t *testing.T) {
	root := t.TempDir()
	entry := writeSass(t, root, "main.scss", `
@use 'colors';
@use 'widgets/button';
@use 'sass:math';

body { margin: 0; }
`)
	colors := writeSass(t, root, "_colors.scss", "$accent: #8af;\n")
	button := writeSass(t, root, "widgets/_button.scss", `
@use '../colors';
.button { color: colors.$accent; }
`)

	files, err := CollectSassFiles(entry, nil)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{entry, colors, button}, files)
}

func TestCollectSassFilesLoadPath(t *testing.T) {
	root := t.TempDir()
	libDir := filepath.Join(root, "lib")
	entry := writeSass(t, root, "app/main.scss", "@use 'theme';\n")
	theme := writeSass(t, libDir, "_theme.scss", "$bg: black;\n")

	files, err := CollectSassFiles(entry, []string{libDir})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{entry, theme}, files)
}

func TestCollectSassFilesMissingPartial(t *testing.T) {
	root := t.TempDir()
	entry := writeSass(t, root, "main.scss", "@use 'nope';\n")

	files, err := CollectSassFiles(entry, nil)
	require.NoError(t, err)

	// unresolvable refs are left for dart-sass to report
	assert.Equal(t, []string{entry}, files)
}

func TestResolveSassRef(t *testing.T) {
	root := t.TempDir()
	plain := writeSass(t, root, "plain.scss", "")
	partial := writeSass(t, root, "_partial.scss", "")
	index := writeSass(t, root, "module/_index.scss", "")

	tests := []struct {
		name     string
		ref      string
		expected string
	}{
		{name: "plain file", ref: "plain", expected: plain},
		{name: "underscore partial", ref: "partial", expected: partial},
		{name: "directory index", ref: "module", expected: index},
		{name: "explicit extension", ref: "plain.scss", expected: plain},
		{name: "missing", ref: "missing", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, resolveSassRef(root, tt.ref, nil))
		})
	}
}

func TestSassCacheRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".cache", "sass-cache.gob")

	cache := NewSassCache(path)
	cache.Store("main.scss", "key1", "body{margin:0}")
	require.NoError(t, cache.Save())

	loaded, err := OpenSassCache(path)
	require.NoError(t, err)

	css, ok := loaded.Lookup("main.scss", "key1")
	assert.True(t, ok)
	assert.Equal(t, "body{margin:0}", css)

	_, ok = loaded.Lookup("main.scss", "key2")
	assert.False(t, ok, "a changed key must miss")

	_, ok = loaded.Lookup("other.scss", "key1")
	assert.False(t, ok)
}

func TestOpenSassCacheMissingFile(t *testing.T) {
	cache, err := OpenSassCache(filepath.Join(t.TempDir(), "nope.gob"))
	require.NoError(t, err)

	_, ok := cache.Lookup("main.scss", "key")
	assert.False(t, ok)
}

func TestSassCacheSaveSkipsClean(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.gob")

	cache := NewSassCache(path)
	require.NoError(t, cache.Save())

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "a clean cache should not touch the disk")
}

func TestHashFiles(t *testing.T) {
	root := t.TempDir()
	file := writeSass(t, root, "main.scss", "body{margin:0}")

	first, err := hashFiles([]string{file})
	require.NoError(t, err)

	again, err := hashFiles([]string{file})
	require.NoError(t, err)
	assert.Equal(t, first, again)

	require.NoError(t, os.WriteFile(file, []byte("body{margin:1px}"), 0660))
	changed, err := hashFiles([]string{file})
	require.NoError(t, err)
	assert.NotEqual(t, first, changed)
}
