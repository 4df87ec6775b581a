package bundle

import (
	"context"
	"os"
	"os/signal"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rotisserie/eris"

	"github.com/ngld/knossos/packages/client-build/pkg"
)

// Watch rebuilds both phases whenever a source file changes. This always
// runs in dev mode; the purge and compression passes only make sense for
// production builds.
func Watch(ctx context.Context, opts Options) error {
	opts.Dev = true

	styleOpts, err := styleBuildOptions(ctx, opts, nil)
	if err != nil {
		return err
	}
	styleOpts.Write = true
	styleOpts.LogLevel = api.LogLevelInfo

	scriptOpts := scriptBuildOptions(opts)
	scriptOpts.Write = true
	scriptOpts.LogLevel = api.LogLevelInfo

	styleCtx, ctxErr := api.Context(styleOpts)
	if ctxErr != nil {
		return eris.Wrap(ctxErr, "Failed to prepare style watcher")
	}
	defer styleCtx.Dispose()

	scriptCtx, ctxErr := api.Context(scriptOpts)
	if ctxErr != nil {
		return eris.Wrap(ctxErr, "Failed to prepare script watcher")
	}
	defer scriptCtx.Dispose()

	err = styleCtx.Watch(api.WatchOptions{})
	if err != nil {
		return eris.Wrap(err, "Failed to watch styles")
	}

	err = scriptCtx.Watch(api.WatchOptions{})
	if err != nil {
		return eris.Wrap(err, "Failed to watch scripts")
	}

	pkg.PrintTask("Watching for changes, press Ctrl+C to stop")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	select {
	case <-sig:
	case <-ctx.Done():
	}

	return nil
}
