package cmd

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/ngld/knossos/packages/client-build/pkg"
	"github.com/ngld/knossos/packages/client-build/pkg/bundle"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Removes the bundled assets and the sass cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := pkg.GetProjectRoot()
		if err != nil {
			return err
		}

		for _, path := range []string{bundle.OutputDir(root), bundle.CachePath(root)} {
			pkg.PrintSubtask("Remove " + path)
			err = os.RemoveAll(path)
			if err != nil {
				return eris.Wrapf(err, "Failed to remove %s", path)
			}
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(cleanCmd)
}
