package pkg

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/mitchellh/colorstring"
	"github.com/rotisserie/eris"
)

// GetProjectRoot walks up from this source file until it finds the workspace
// root. A .git directory marks it; TOOLS.yml works as a fallback for source
// archives that were unpacked without the repository metadata.
func GetProjectRoot() (string, error) {
	_, mypath, _, ok := runtime.Caller(0)
	if !ok {
		return "", eris.New("Failed to determine script path!")
	}

	return findRoot(filepath.Dir(mypath))
}

func findRoot(start string) (string, error) {
	for {
		for _, marker := range []string{".git", "TOOLS.yml"} {
			_, err := os.Stat(filepath.Join(start, marker))
			if err == nil {
				return start, nil
			}
			if !eris.Is(err, os.ErrNotExist) {
				return "", eris.Wrap(err, "Error occurred while searching for project root")
			}
		}

		nextPath := filepath.Dir(start)
		if start == nextPath {
			break
		}
		start = nextPath
	}

	return "", eris.New("Project root not found")
}

func PrintTask(msg string) {
	colorstring.Printf("[blue][bold]==>[default] %s\n", msg)
}

func PrintSubtask(msg string) {
	colorstring.Printf("[green][bold]  ->[reset] %s\n", msg)
}

func PrintError(msg string) {
	colorstring.Printf("[red][bold]  ->[reset] %s\n", msg)
}
