package bundle

import (
	"context"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/ngld/knossos/packages/client-build/pkg"
)

// scriptBuildOptions assembles the esbuild configuration for the script phase
func scriptBuildOptions(opts Options) api.BuildOptions {
	result := api.BuildOptions{
		EntryPointsAdvanced: advancedEntries(opts.ProjectRoot, scriptEntries),
		Outdir:              OutputDir(opts.ProjectRoot),
		AbsWorkingDir:       opts.ProjectRoot,
		Bundle:              true,
		Write:               false,
		Format:              api.FormatIIFE,
		Target:              api.ES2020,
		LogLevel:            api.LogLevelSilent,
	}

	if opts.Dev {
		result.Sourcemap = api.SourceMapInline
	} else {
		result.MinifyWhitespace = true
		result.MinifyIdentifiers = true
		result.MinifySyntax = true
		result.Sourcemap = api.SourceMapLinked
	}

	return result
}

// Scripts compiles the TypeScript entry points into bundled JavaScript
func Scripts(ctx context.Context, opts Options) error {
	pkg.PrintTask("Building scripts")

	result := api.Build(scriptBuildOptions(opts))
	for _, msg := range result.Warnings {
		pkg.Log(ctx).Warn().Str("phase", "scripts").Msg(msg.Text)
	}
	if len(result.Errors) > 0 {
		return messagesToError("script build", result.Errors)
	}

	_, err := writeOutputs(opts.ProjectRoot, result.OutputFiles)
	return err
}
