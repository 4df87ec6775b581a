// Package tools downloads and unpacks the external binaries listed in
// TOOLS.yml into the workspace .tools directory. The asset build only needs
// dart-sass right now but the mechanism is generic.
package tools

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/schollz/progressbar/v3"

	"github.com/ngld/knossos/packages/client-build/pkg"
	"github.com/ngld/knossos/packages/client-build/pkg/config"
)

func getProgressBar(length int64, desc string) *progressbar.ProgressBar {
	if os.Getenv("CI") == "true" {
		// progress bars just clutter CI logs
		return progressbar.NewOptions64(length, progressbar.OptionSetVisibility(false))
	}

	return progressbar.DefaultBytes(length, desc)
}

// FetchAll downloads every tool that applies to the current platform, skipping
// tools whose stamp still matches. With update set, checksums in TOOLS.yml are
// refreshed instead of enforced.
func FetchAll(projectRoot string, update bool) error {
	pkg.PrintTask("Loading config")
	cfg, cfgData, stamps, err := config.Load(projectRoot)
	if err != nil {
		return err
	}

	pkg.PrintTask("Downloading tools")
	err = downloadAndExtract(cfg, cfgData, stamps, projectRoot, update)

	sErr := config.SaveStamps(projectRoot, stamps)
	if sErr != nil {
		pkg.PrintError(sErr.Error())
	}

	pkg.PrintTask("Done")
	return err
}

func downloadAndExtract(cfg config.Config, cfgData string, stamps map[string]string, projectRoot string, update bool) error {
	client := &http.Client{
		Timeout: time.Minute * 30,
	}
	buf := make([]byte, 4096)

	vars := cfg.Vars
	if vars == nil {
		vars = map[string]string{}
	}
	vars[runtime.GOARCH] = "true"
	vars[runtime.GOOS] = "true"
	if os.Getenv("CI") == "true" {
		vars["ci"] = "true"
	}

	changes := map[string]string{}
	for name, meta := range cfg.Tools {
		// The conditions have to be evaluated even in update mode because they
		// substitute the variable placeholders in the URL.
		skip := !config.EvalConditions(&meta, vars)
		if skip && !update {
			continue
		}

		destPath := filepath.Join(projectRoot, meta.Dest)
		destInfo, err := os.Stat(destPath)
		destExists := err == nil

		stampToken := meta.URL + "#" + meta.Sha256
		stamp, ok := stamps[name]
		if ok && stampToken == stamp && destExists {
			continue
		}

		pkg.PrintSubtask(name + ":  " + meta.URL)
		if meta.Sha256 == "" && !update {
			return eris.Errorf("Tool %s doesn't have a checksum", name)
		}

		arHandle, err := os.CreateTemp("", "tools_dl")
		if err != nil {
			return eris.Wrap(err, "Failed to create download file")
		}
		defer func() {
			arHandle.Close()
			os.Remove(arHandle.Name())
		}()

		resp, err := client.Get(meta.URL)
		if err != nil {
			return eris.Wrapf(err, "Failed to start download for %s", meta.URL)
		}
		defer resp.Body.Close()

		hash := sha256.New()
		bar := getProgressBar(resp.ContentLength, "     download")
		for {
			n, err := resp.Body.Read(buf)
			if err != nil && n < 1 {
				if err == io.EOF {
					break
				}
				return eris.Wrapf(err, "Failed during download of %s", meta.URL)
			}

			_, err = hash.Write(buf[:n])
			if err != nil {
				return eris.Wrapf(err, "Failed to calculate checksum for %s", meta.URL)
			}

			_, err = arHandle.Write(buf[:n])
			if err != nil {
				return eris.Wrap(err, "Failed to write download to temporary file")
			}

			bar.Write(buf[:n])
		}
		bar.Finish()
		resp.Body.Close()

		digest := hex.EncodeToString(hash.Sum(nil))
		if digest != meta.Sha256 {
			if update {
				fmt.Println("      Updating checksum")
				changes[name] = digest
			} else {
				return eris.Errorf("Checksum check for %s failed", name)
			}
		}

		if skip {
			continue
		}

		if destExists {
			pkg.PrintSubtask(fmt.Sprintf("Remove %s", destPath))
			if destInfo.IsDir() {
				err = os.RemoveAll(destPath)
			} else {
				err = os.Remove(destPath)
			}
			if err != nil {
				return eris.Wrapf(err, "Failed to remove %s", destPath)
			}
		}

		extractor, err := getExtractor(meta.URL)
		if err != nil {
			return err
		}

		arHandle.Seek(0, io.SeekStart)
		bar = getProgressBar(resp.ContentLength, "      extract")
		err = extractor(arHandle, bar, projectRoot, meta)
		if err != nil {
			return err
		}

		if runtime.GOOS != "windows" {
			// .zip files don't carry permissions so binaries from .zip archives
			// have to be marked executable after extraction
			for _, binPath := range meta.MarkExec {
				binPath = filepath.Join(projectRoot, meta.Dest, binPath)
				fi, err := os.Stat(binPath)
				if err != nil {
					return eris.Wrapf(err, "Failed to read permissions for %s", binPath)
				}

				err = os.Chmod(binPath, fi.Mode()|0700)
				if err != nil {
					return eris.Wrapf(err, "Failed to mark %s as executable", binPath)
				}
			}
		}

		stamps[name] = stampToken
	}

	if update {
		pkg.PrintTask("Updating TOOLS.yml")
		generated, err := updateChecksums(cfgData, changes, cfg)
		if err != nil {
			return err
		}

		err = os.WriteFile(filepath.Join(projectRoot, "TOOLS.yml"), []byte(generated), os.FileMode(0660))
		if err != nil {
			return eris.Wrap(err, "Failed to write TOOLS.yml")
		}
	}

	return nil
}

// updateChecksums patches the new checksums into the raw TOOLS.yml contents.
// The file is edited as text instead of being re-marshalled so comments and
// formatting survive the update.
func updateChecksums(cfgData string, changes map[string]string, cfg config.Config) (string, error) {
	generated := cfgData
	for name, newChecksum := range changes {
		pos := strings.Index(generated, name+":\n")
		if pos == -1 {
			return "", eris.Errorf("Failed to find the section for %s!", name)
		}

		if cfg.Tools[name].Sha256 == "" {
			// no existing line to replace, insert one right below the name
			start := pos + len(name) + 2
			generated = generated[:start] + "    sha256: " + newChecksum + "\n" + generated[start:]
			continue
		}

		subPos := strings.Index(generated[pos:], "sha256: "+cfg.Tools[name].Sha256)
		if subPos == -1 {
			fmt.Printf("     Couldn't find checksum section for %s.\n", name)
			continue
		}

		start := pos + subPos + 8
		end := start + len(cfg.Tools[name].Sha256)
		generated = generated[:start] + newChecksum + generated[end:]
	}

	return generated, nil
}
