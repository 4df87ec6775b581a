package bundle

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSass stands in for the dart-sass binary so style builds run without it
type fakeSass struct {
	results   map[string]string
	loadPaths []string
	calls     int
}

func (f *fakeSass) Compile(ctx context.Context, path string) (string, error) {
	f.calls++
	return f.results[filepath.Base(path)], nil
}

func (f *fakeSass) LoadPaths() []string {
	return f.loadPaths
}

func styleProject(t *testing.T) (string, *fakeSass) {
	t.Helper()

	root := testProject(t)
	writeProjectFile(t, root, "packages/client-ui/scss/main.scss", "// compiled by the fake\n")
	writeProjectFile(t, root, "packages/client-ui/scss/splash.scss", "// compiled by the fake\n")
	writeProjectFile(t, root, "packages/client-ui/ts/main.ts", `el.className = "used";`)

	compiler := &fakeSass{
		results: map[string]string{
			"main.scss":   ".used { color: red; }\n.unused { color: blue; }\n",
			"splash.scss": "body { margin: 0; }\n",
		},
	}
	return root, compiler
}

func TestStyles(t *testing.T) {
	root, compiler := styleProject(t)

	err := Styles(testContext(t), Options{ProjectRoot: root, Compiler: compiler, NoCache: true})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(OutputDir(root), "main.css"))
	require.NoError(t, err)
	assert.Contains(t, string(data), ".used")
	assert.NotContains(t, string(data), ".unused", "production builds drop unreferenced rules")

	data, err = os.ReadFile(filepath.Join(OutputDir(root), "splash.css"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "body")
}

func TestStylesKeepUnusedCSS(t *testing.T) {
	root, compiler := styleProject(t)

	err := Styles(testContext(t), Options{ProjectRoot: root, Compiler: compiler, NoCache: true, KeepUnusedCSS: true})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(OutputDir(root), "main.css"))
	require.NoError(t, err)
	assert.Contains(t, string(data), ".unused")
}

func TestStylesDevSkipsPurge(t *testing.T) {
	root, compiler := styleProject(t)

	err := Styles(testContext(t), Options{ProjectRoot: root, Compiler: compiler, NoCache: true, Dev: true})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(OutputDir(root), "main.css"))
	require.NoError(t, err)
	assert.Contains(t, string(data), ".unused")
}

func TestStylesCache(t *testing.T) {
	root, compiler := styleProject(t)
	opts := Options{ProjectRoot: root, Compiler: compiler, KeepUnusedCSS: true}

	err := Styles(testContext(t), opts)
	require.NoError(t, err)
	assert.Equal(t, 2, compiler.calls)

	_, err = os.Stat(CachePath(root))
	require.NoError(t, err, "the cache should be persisted")

	err = Styles(testContext(t), opts)
	require.NoError(t, err)
	assert.Equal(t, 2, compiler.calls, "unchanged entries must come from the cache")

	// editing an entry point invalidates only its own cache slot
	writeProjectFile(t, root, "packages/client-ui/scss/main.scss", "// edited\n")
	err = Styles(testContext(t), opts)
	require.NoError(t, err)
	assert.Equal(t, 3, compiler.calls)
}

func TestStylesNoCache(t *testing.T) {
	root, compiler := styleProject(t)
	opts := Options{ProjectRoot: root, Compiler: compiler, NoCache: true, KeepUnusedCSS: true}

	err := Styles(testContext(t), opts)
	require.NoError(t, err)

	err = Styles(testContext(t), opts)
	require.NoError(t, err)
	assert.Equal(t, 4, compiler.calls)

	_, err = os.Stat(CachePath(root))
	assert.True(t, os.IsNotExist(err))
}
