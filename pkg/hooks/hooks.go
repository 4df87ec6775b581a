// Package hooks runs the shell snippets from the hooks section of TOOLS.yml.
// The snippets are executed with a portable shell interpreter so they behave
// the same on Windows; mv, rm and mkdir are provided in-process for the same
// reason.
package hooks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/ngld/knossos/packages/client-build/pkg"
)

func execHandler(next interp.ExecHandlerFunc) interp.ExecHandlerFunc {
	return func(ctx context.Context, args []string) error {
		if len(args) > 0 {
			// cross-platform implementations to keep hook snippets portable
			switch args[0] {
			case "mv":
				return builtinMv(ctx, args[1:])
			case "rm":
				return builtinRm(ctx, args[1:])
			case "mkdir":
				return builtinMkdir(ctx, args[1:])
			}
		}

		return next(ctx, args)
	}
}

// Run executes the given snippets in order inside the project root. The
// first failing snippet aborts the remaining ones.
func Run(ctx context.Context, projectRoot string, snippets []string) error {
	if len(snippets) == 0 {
		return nil
	}

	runner, err := interp.New(
		interp.Dir(projectRoot),
		interp.Env(expand.ListEnviron(os.Environ()...)),
		interp.ExecHandlers(execHandler),
		interp.StdIO(nil, os.Stdout, os.Stderr),
		interp.Params("-e"),
	)
	if err != nil {
		return eris.Wrap(err, "Failed to initialize hook runner")
	}

	parser := syntax.NewParser()
	for idx, snippet := range snippets {
		name := fmt.Sprintf("hook:%d", idx)
		file, err := parser.Parse(strings.NewReader(snippet), name)
		if err != nil {
			return eris.Wrapf(err, "Failed to parse hook %s", snippet)
		}

		pkg.Log(ctx).Info().Str("hook", name).Msg(snippet)
		err = runner.Run(ctx, file)
		if err != nil {
			return eris.Wrapf(err, "Hook failed: %s", snippet)
		}
		runner.Reset()
	}

	return nil
}

func hookPath(ctx context.Context, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(interp.HandlerCtx(ctx).Dir, path)
}

func builtinMv(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return eris.New("mv: not enough arguments")
	}

	dest := hookPath(ctx, args[len(args)-1])
	destInfo, err := os.Stat(dest)
	destIsDir := err == nil && destInfo.IsDir()

	if len(args) > 2 && !destIsDir {
		return eris.Errorf("mv: %s is not a directory", dest)
	}

	for _, item := range args[:len(args)-1] {
		item = hookPath(ctx, item)
		target := dest
		if destIsDir {
			target = filepath.Join(dest, filepath.Base(item))
		}

		err := os.Rename(item, target)
		if err != nil {
			return eris.Wrapf(err, "mv: failed to move %s to %s", item, target)
		}
	}

	return nil
}

func builtinRm(ctx context.Context, args []string) error {
	recursive := false
	force := false
	items := []string{}
	for _, arg := range args {
		switch arg {
		case "-r", "-R", "-rf", "-fr":
			recursive = true
			force = force || strings.Contains(arg, "f")
		case "-f":
			force = true
		default:
			items = append(items, hookPath(ctx, arg))
		}
	}

	for _, item := range items {
		info, err := os.Stat(item)
		if err != nil {
			if force && eris.Is(err, os.ErrNotExist) {
				continue
			}
			return eris.Wrapf(err, "rm: could not stat %s", item)
		}

		if info.IsDir() && !recursive {
			return eris.Errorf("rm: %s is a directory but -r wasn't passed", item)
		}

		err = os.RemoveAll(item)
		if err != nil {
			return eris.Wrapf(err, "rm: could not delete %s", item)
		}
	}

	return nil
}

func builtinMkdir(ctx context.Context, args []string) error {
	makeParents := false
	items := []string{}
	for _, arg := range args {
		if arg == "-p" {
			makeParents = true
		} else {
			items = append(items, hookPath(ctx, arg))
		}
	}

	for _, item := range items {
		var err error
		if makeParents {
			err = os.MkdirAll(item, 0770)
		} else {
			err = os.Mkdir(item, 0770)
		}

		if err != nil {
			return eris.Wrapf(err, "mkdir: failed to create %s", item)
		}
	}

	return nil
}
