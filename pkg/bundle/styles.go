package bundle

import (
	"context"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rotisserie/eris"

	"github.com/ngld/knossos/packages/client-build/pkg"
)

func styleBuildOptions(ctx context.Context, opts Options, cache *SassCache) (api.BuildOptions, error) {
	compiler := opts.Compiler
	if compiler == nil {
		var err error
		compiler, err = NewDartSass(opts.ProjectRoot)
		if err != nil {
			return api.BuildOptions{}, err
		}
	}

	result := api.BuildOptions{
		EntryPointsAdvanced: advancedEntries(opts.ProjectRoot, styleEntries),
		Outdir:              OutputDir(opts.ProjectRoot),
		AbsWorkingDir:       opts.ProjectRoot,
		Bundle:              true,
		Write:               false,
		LogLevel:            api.LogLevelSilent,
		Plugins:             []api.Plugin{SassPlugin(ctx, compiler, cache)},
	}

	if opts.Dev {
		result.Sourcemap = api.SourceMapInline
	} else {
		result.MinifyWhitespace = true
		result.MinifySyntax = true
	}

	return result, nil
}

// Styles compiles the Sass entry points into bundled CSS. In production mode
// the bundles are additionally stripped of rules no UI file references.
func Styles(ctx context.Context, opts Options) error {
	pkg.PrintTask("Building styles")

	var cache *SassCache
	if !opts.NoCache {
		var err error
		cache, err = OpenSassCache(CachePath(opts.ProjectRoot))
		if err != nil {
			// a broken cache shouldn't stop the build
			pkg.Log(ctx).Warn().Err(err).Msg("Discarding unreadable sass cache")
			cache = NewSassCache(CachePath(opts.ProjectRoot))
		}
	}

	buildOpts, err := styleBuildOptions(ctx, opts, cache)
	if err != nil {
		return err
	}

	result := api.Build(buildOpts)
	for _, msg := range result.Warnings {
		pkg.Log(ctx).Warn().Str("phase", "styles").Msg(msg.Text)
	}
	if len(result.Errors) > 0 {
		return messagesToError("style build", result.Errors)
	}

	written, err := writeOutputs(opts.ProjectRoot, result.OutputFiles)
	if err != nil {
		return err
	}

	if cache != nil {
		err = cache.Save()
		if err != nil {
			pkg.Log(ctx).Warn().Err(err).Msg("Failed to write sass cache")
		}
	}

	if !opts.Dev && !opts.KeepUnusedCSS {
		cssFiles := make([]string, 0, len(written))
		for _, path := range written {
			if strings.HasSuffix(path, ".css") {
				cssFiles = append(cssFiles, path)
			}
		}

		err = PurgeOutputs(ctx, opts.ProjectRoot, cssFiles, contentPatterns)
		if err != nil {
			return eris.Wrap(err, "Failed to remove unused CSS rules")
		}
	}

	return nil
}
