// Package config reads the TOOLS.yml file which declares the external
// binaries needed for asset builds (most importantly dart-sass) and the
// optional shell hooks that run around a build.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// ToolSpec describes a single downloadable tool
type ToolSpec struct {
	Condition  string `yaml:"if,omitempty"`
	Rejections string `yaml:"ifNot,omitempty"`
	URL        string
	Dest       string
	Sha256     string
	Strip      int
	MarkExec   []string `yaml:"markExec,omitempty"`
}

// Hooks contains shell snippets that run before and after a build
type Hooks struct {
	Pre  []string `yaml:"pre,omitempty"`
	Post []string `yaml:"post,omitempty"`
}

type Config struct {
	Vars  map[string]string
	Tools map[string]ToolSpec
	Hooks Hooks `yaml:",omitempty"`
}

var varMatcher = regexp.MustCompile(`\{([A-Z0-9_]+)\}`)

// Load reads TOOLS.yml and the matching stamp file from the project root.
// The raw file contents are returned as well because the checksum update
// logic has to patch the file in place without losing comments.
func Load(projectRoot string) (Config, string, map[string]string, error) {
	var cfg Config
	cfgPath := filepath.Join(projectRoot, "TOOLS.yml")
	cfgData, err := os.ReadFile(cfgPath)
	if err != nil {
		return cfg, "", nil, eris.Wrapf(err, "Could not open file %s.", cfgPath)
	}

	err = yaml.Unmarshal(cfgData, &cfg)
	if err != nil {
		return cfg, "", nil, eris.Wrapf(err, "Failed to parse %s.", cfgPath)
	}

	stamps := map[string]string{}
	stampPath := filepath.Join(projectRoot, "TOOLS.stamps")
	stampData, err := os.ReadFile(stampPath)
	if err != nil {
		if !eris.Is(err, os.ErrNotExist) {
			return cfg, "", nil, eris.Wrapf(err, "Failed to read stamps file %s.", stampPath)
		}
	} else {
		err = json.Unmarshal(stampData, &stamps)
		if err != nil {
			return cfg, "", nil, eris.Wrapf(err, "Failed to parse JSON file %s.", stampPath)
		}
	}

	return cfg, string(cfgData), stamps, nil
}

// SaveStamps writes the stamp map next to TOOLS.yml
func SaveStamps(projectRoot string, stamps map[string]string) error {
	stampData, err := json.Marshal(stamps)
	if err != nil {
		return eris.Wrap(err, "Failed to serialize stamps")
	}

	stampPath := filepath.Join(projectRoot, "TOOLS.stamps")
	err = os.WriteFile(stampPath, stampData, os.FileMode(0660))
	if err != nil {
		return eris.Wrapf(err, "Failed to write %s", stampPath)
	}
	return nil
}

// EvalConditions substitutes {VAR} placeholders in the tool's URL and checks
// the if / ifNot conditions against the passed variables. It reports whether
// the tool applies to the current platform.
func EvalConditions(meta *ToolSpec, vars map[string]string) bool {
	meta.URL = varMatcher.ReplaceAllStringFunc(meta.URL, func(varName string) string {
		value, ok := vars[varName[1:len(varName)-1]]
		if ok {
			return value
		}
		return ""
	})

	for _, condition := range strings.Split(meta.Condition, ",") {
		if condition == "" {
			continue
		}

		value, ok := vars[strings.TrimSpace(condition)]
		if !ok || value == "" {
			return false
		}
	}

	for _, condition := range strings.Split(meta.Rejections, ",") {
		if condition == "" {
			continue
		}

		value, ok := vars[strings.TrimSpace(condition)]
		if ok && value != "" {
			return false
		}
	}
	return true
}
