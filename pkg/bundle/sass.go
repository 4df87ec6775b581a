package bundle

import (
	"context"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rotisserie/eris"

	"github.com/ngld/knossos/packages/client-build/pkg"
)

// SassCompiler turns a .scss entry point into plain CSS
type SassCompiler interface {
	Compile(ctx context.Context, path string) (string, error)
	LoadPaths() []string
}

// DartSass runs the dart-sass CLI which fetch-tools places in .tools
type DartSass struct {
	binPath   string
	loadPaths []string
}

// NewDartSass locates the sass binary. The copy in the workspace .tools
// directory wins over anything on PATH.
func NewDartSass(projectRoot string) (*DartSass, error) {
	binName := "sass"
	if runtime.GOOS == "windows" {
		binName = "sass.bat"
	}

	binPath := filepath.Join(projectRoot, ".tools", "dart-sass", binName)
	if _, err := exec.LookPath(binPath); err != nil {
		binPath, err = exec.LookPath("sass")
		if err != nil {
			return nil, eris.New("dart-sass is missing; run fetch-tools first")
		}
	}

	return &DartSass{
		binPath:   binPath,
		loadPaths: []string{filepath.Join(projectRoot, "packages", "client-ui", "scss")},
	}, nil
}

func (d *DartSass) LoadPaths() []string {
	return d.loadPaths
}

// Compile runs dart-sass and returns the generated CSS. Minification is left
// to esbuild which processes the result anyway.
func (d *DartSass) Compile(ctx context.Context, path string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	args := []string{"--style=expanded", "--no-source-map"}
	for _, item := range d.loadPaths {
		args = append(args, "--load-path="+item)
	}
	args = append(args, path)

	cmd := exec.CommandContext(ctx, d.binPath, args...)
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		details := strings.TrimSpace(stderr.String())
		if details == "" {
			details = err.Error()
		}
		return "", eris.Errorf("sass failed for %s: %s", path, details)
	}

	return stdout.String(), nil
}

// SassPlugin wires the sass compiler into esbuild. Every .scss import is
// routed into the "sass" namespace and compiled on load; the transitive
// partials are registered as watch files so watch mode picks up edits to them.
func SassPlugin(ctx context.Context, compiler SassCompiler, cache *SassCache) api.Plugin {
	return api.Plugin{
		Name: "sass",
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: `\.scss$`}, func(args api.OnResolveArgs) (api.OnResolveResult, error) {
				path := args.Path
				if !filepath.IsAbs(path) {
					path = filepath.Join(args.ResolveDir, path)
				}

				return api.OnResolveResult{Path: path, Namespace: "sass"}, nil
			})

			build.OnLoad(api.OnLoadOptions{Filter: `.*`, Namespace: "sass"}, func(args api.OnLoadArgs) (api.OnLoadResult, error) {
				css, watchFiles, err := compileSassEntry(ctx, compiler, cache, args.Path)
				if err != nil {
					return api.OnLoadResult{}, err
				}

				return api.OnLoadResult{
					Contents:   &css,
					Loader:     api.LoaderCSS,
					WatchFiles: watchFiles,
				}, nil
			})
		},
	}
}

func compileSassEntry(ctx context.Context, compiler SassCompiler, cache *SassCache, path string) (string, []string, error) {
	files, err := CollectSassFiles(path, compiler.LoadPaths())
	if err != nil {
		return "", nil, err
	}

	key, err := hashFiles(files)
	if err != nil {
		return "", nil, err
	}

	if cache != nil {
		if css, ok := cache.Lookup(path, key); ok {
			pkg.Log(ctx).Debug().Str("path", path).Msg("sass cache hit")
			return css, files, nil
		}
	}

	css, err := compiler.Compile(ctx, path)
	if err != nil {
		return "", nil, err
	}

	if cache != nil {
		cache.Store(path, key, css)
	}
	return css, files, nil
}
