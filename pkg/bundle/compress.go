package bundle

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/andybalholm/brotli"
	"github.com/rotisserie/eris"

	"github.com/ngld/knossos/packages/client-build/pkg"
)

// Compress writes precompressed .br siblings for every bundle in the output
// directory so the web server can serve them without compressing on the fly.
func Compress(ctx context.Context, projectRoot string) error {
	pkg.PrintTask("Precompressing bundles")

	outDir := OutputDir(projectRoot)
	return filepath.WalkDir(outDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}

		switch filepath.Ext(path) {
		case ".js", ".css", ".map":
		default:
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return eris.Wrapf(err, "Failed to read %s", path)
		}

		handle, err := os.Create(path + ".br")
		if err != nil {
			return eris.Wrapf(err, "Failed to create %s.br", path)
		}

		writer := brotli.NewWriterLevel(handle, brotli.BestCompression)
		_, err = writer.Write(data)
		if err == nil {
			err = writer.Close()
		}
		if err != nil {
			handle.Close()
			os.Remove(path + ".br")
			return eris.Wrapf(err, "Failed to compress %s", path)
		}

		err = handle.Close()
		if err != nil {
			return eris.Wrapf(err, "Failed to close %s.br", path)
		}

		info, err := os.Stat(path + ".br")
		if err == nil {
			rel, rErr := filepath.Rel(projectRoot, path)
			if rErr != nil {
				rel = path
			}
			pkg.PrintSubtask(fmt.Sprintf("%s.br (%s -> %s)", rel, formatSize(len(data)), formatSize(int(info.Size()))))
		}

		return nil
	})
}
