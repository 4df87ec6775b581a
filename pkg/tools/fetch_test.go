package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ngld/knossos/packages/client-build/pkg/config"
)

const checksumFixture = `vars:
  SASS_VERSION: 1.77.8

# keep this comment
tools:
  dart-sass-linux:
    if: linux, amd64
    url: https://example.org/linux.tar.gz
    dest: .tools
  dart-sass-windows:
    if: windows
    url: https://example.org/windows.zip
    dest: .tools
    sha256: oldwincheck
`

func checksumConfig() config.Config {
	return config.Config{
		Tools: map[string]config.ToolSpec{
			"dart-sass-linux":   {},
			"dart-sass-windows": {Sha256: "oldwincheck"},
		},
	}
}

func TestUpdateChecksumsInsert(t *testing.T) {
	result, err := updateChecksums(checksumFixture, map[string]string{
		"dart-sass-linux": "newlinuxcheck",
	}, checksumConfig())
	require.NoError(t, err)

	assert.Contains(t, result, "dart-sass-linux:\n    sha256: newlinuxcheck\n    if: linux, amd64")
	assert.Contains(t, result, "sha256: oldwincheck", "other sections must stay untouched")
	assert.Contains(t, result, "# keep this comment")
}

func TestUpdateChecksumsReplace(t *testing.T) {
	result, err := updateChecksums(checksumFixture, map[string]string{
		"dart-sass-windows": "newwincheck",
	}, checksumConfig())
	require.NoError(t, err)

	assert.Contains(t, result, "sha256: newwincheck")
	assert.NotContains(t, result, "oldwincheck")
	assert.Contains(t, result, "url: https://example.org/windows.zip")
}

func TestUpdateChecksumsBoth(t *testing.T) {
	result, err := updateChecksums(checksumFixture, map[string]string{
		"dart-sass-linux":   "newlinuxcheck",
		"dart-sass-windows": "newwincheck",
	}, checksumConfig())
	require.NoError(t, err)

	assert.Contains(t, result, "sha256: newlinuxcheck")
	assert.Contains(t, result, "sha256: newwincheck")
	assert.NotContains(t, result, "oldwincheck")
}

func TestUpdateChecksumsMissingSection(t *testing.T) {
	_, err := updateChecksums(checksumFixture, map[string]string{
		"dart-sass-macos": "whatever",
	}, checksumConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dart-sass-macos")
}

func TestUpdateChecksumsNoChanges(t *testing.T) {
	result, err := updateChecksums(checksumFixture, nil, checksumConfig())
	require.NoError(t, err)
	assert.Equal(t, checksumFixture, result)
}
