// Package bundle drives esbuild to turn the client UI's TypeScript entry
// points and Sass stylesheets into minified bundles. The two phases (styles,
// scripts) are independent and run sequentially; styles always come first.
package bundle

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rotisserie/eris"

	"github.com/ngld/knossos/packages/client-build/pkg"
)

// Options controls a single build invocation
type Options struct {
	ProjectRoot string
	// Dev disables minification and places sourcemaps inline
	Dev bool
	// NoCache bypasses the sass compiler cache
	NoCache bool
	// KeepUnusedCSS skips the unused-rule removal pass
	KeepUnusedCSS bool
	// Compiler overrides the sass compiler; defaults to the dart-sass
	// binary from .tools
	Compiler SassCompiler
}

// scriptEntries maps output names to their TypeScript entry points
var scriptEntries = map[string]string{
	"knossos": "packages/client-ui/ts/main.ts",
	"splash":  "packages/client-ui/ts/splash.ts",
}

// styleEntries maps output names to their Sass entry points
var styleEntries = map[string]string{
	"main":   "packages/client-ui/scss/main.scss",
	"splash": "packages/client-ui/scss/splash.scss",
}

// contentPatterns lists the files that are scanned for used CSS selectors
var contentPatterns = []string{
	"packages/client-ui/ts/**/*.ts",
	"packages/client-ui/ts/**/*.tsx",
	"packages/client-ui/*.html",
}

const outputDir = "packages/client-ui/dist"

// OutputDir returns the directory bundles are written to
func OutputDir(projectRoot string) string {
	return filepath.Join(projectRoot, outputDir)
}

// CachePath returns the location of the sass compiler cache
func CachePath(projectRoot string) string {
	return filepath.Join(projectRoot, ".cache", "sass-cache.gob")
}

func advancedEntries(projectRoot string, entries map[string]string) []api.EntryPoint {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	result := make([]api.EntryPoint, len(names))
	for idx, name := range names {
		result[idx] = api.EntryPoint{
			OutputPath: name,
			InputPath:  filepath.Join(projectRoot, entries[name]),
		}
	}
	return result
}

func messagesToError(what string, msgs []api.Message) error {
	lines := make([]string, len(msgs))
	for idx, msg := range msgs {
		if msg.Location != nil {
			lines[idx] = fmt.Sprintf("%s:%d:%d: %s", msg.Location.File, msg.Location.Line, msg.Location.Column, msg.Text)
		} else {
			lines[idx] = msg.Text
		}
	}

	return eris.Errorf("%s failed:\n%s", what, strings.Join(lines, "\n"))
}

// writeOutputs writes esbuild's in-memory output files to disk and announces
// each of them. It returns the paths that were written.
func writeOutputs(projectRoot string, files []api.OutputFile) ([]string, error) {
	written := make([]string, 0, len(files))
	for _, file := range files {
		err := os.MkdirAll(filepath.Dir(file.Path), os.FileMode(0770))
		if err != nil {
			return written, eris.Wrapf(err, "Failed to create directory for %s", file.Path)
		}

		err = os.WriteFile(file.Path, file.Contents, os.FileMode(0660))
		if err != nil {
			return written, eris.Wrapf(err, "Failed to write %s", file.Path)
		}

		rel, err := filepath.Rel(projectRoot, file.Path)
		if err != nil {
			rel = file.Path
		}

		pkg.PrintSubtask(fmt.Sprintf("%s (%s)", rel, formatSize(len(file.Contents))))
		written = append(written, file.Path)
	}

	return written, nil
}

func formatSize(size int) string {
	switch {
	case size >= 1024*1024:
		return fmt.Sprintf("%.2f MiB", float64(size)/(1024*1024))
	case size >= 1024:
		return fmt.Sprintf("%.2f KiB", float64(size)/1024)
	default:
		return fmt.Sprintf("%d B", size)
	}
}
