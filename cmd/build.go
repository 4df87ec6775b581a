package cmd

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ngld/knossos/packages/client-build/pkg"
	"github.com/ngld/knossos/packages/client-build/pkg/bundle"
	"github.com/ngld/knossos/packages/client-build/pkg/config"
	"github.com/ngld/knossos/packages/client-build/pkg/hooks"
)

type buildFlags struct {
	stylesOnly    bool
	scriptsOnly   bool
	noCache       bool
	dev           bool
	watch         bool
	compress      bool
	keepUnusedCSS bool
}

func getBuildFlags(cmd *cobra.Command) (buildFlags, error) {
	var flags buildFlags
	var err error

	boolFlags := []struct {
		name string
		dest *bool
	}{
		{"styles", &flags.stylesOnly},
		{"scripts", &flags.scriptsOnly},
		{"no-cache", &flags.noCache},
		{"dev", &flags.dev},
		{"watch", &flags.watch},
		{"compress", &flags.compress},
		{"keep-unused-css", &flags.keepUnusedCSS},
	}
	for _, item := range boolFlags {
		*item.dest, err = cmd.Flags().GetBool(item.name)
		if err != nil {
			return flags, err
		}
	}

	return flags, nil
}

// Phase selection. Passing both --styles and --scripts is the same as
// passing neither; each flag only suppresses the other phase.
func (f buildFlags) buildStyles() bool {
	return !f.scriptsOnly || f.stylesOnly
}

func (f buildFlags) buildScripts() bool {
	return !f.stylesOnly || f.scriptsOnly
}

// loadHooks reads the hook snippets from TOOLS.yml. A missing file is fine
// since hooks are optional but a file that fails to parse is worth a warning;
// otherwise hooks would silently stop running after a bad edit.
func loadHooks(logger *zerolog.Logger, root string) config.Hooks {
	cfg, _, _, err := config.Load(root)
	if err != nil {
		if eris.Is(err, os.ErrNotExist) {
			logger.Debug().Err(err).Msg("No hook configuration found")
		} else {
			logger.Warn().Err(err).Msg("Could not read TOOLS.yml; skipping hooks")
		}
	}

	return cfg.Hooks
}

// runBuild executes the style and script phases. A failed phase is logged
// and the remaining phase still runs; the exit code stays zero so that
// incremental dev loops aren't interrupted by a transient compile error.
func runBuild(cmd *cobra.Command, args []string) error {
	flags, err := getBuildFlags(cmd)
	if err != nil {
		return err
	}

	logger := zerolog.New(NewConsoleWriter())
	ctx := pkg.WithLogger(context.Background(), &logger)

	root, err := pkg.GetProjectRoot()
	if err != nil {
		return err
	}

	opts := bundle.Options{
		ProjectRoot:   root,
		Dev:           flags.dev || flags.watch,
		NoCache:       flags.noCache,
		KeepUnusedCSS: flags.keepUnusedCSS,
	}

	hookCfg := loadHooks(&logger, root)
	err = hooks.Run(ctx, root, hookCfg.Pre)
	if err != nil {
		return err
	}

	if flags.watch {
		return bundle.Watch(ctx, opts)
	}

	if flags.buildStyles() {
		err = bundle.Styles(ctx, opts)
		if err != nil {
			logger.Error().Err(err).Str("phase", "styles").Msg("Style build failed")
		}
	}

	if flags.buildScripts() {
		err = bundle.Scripts(ctx, opts)
		if err != nil {
			logger.Error().Err(err).Str("phase", "scripts").Msg("Script build failed")
		}
	}

	if flags.compress && !opts.Dev {
		err = bundle.Compress(ctx, root)
		if err != nil {
			logger.Error().Err(err).Msg("Precompression failed")
		}
	}

	return hooks.Run(ctx, root, hookCfg.Post)
}
