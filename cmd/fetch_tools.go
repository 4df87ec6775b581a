package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ngld/knossos/packages/client-build/pkg"
	"github.com/ngld/knossos/packages/client-build/pkg/tools"
)

var fetchToolsCmd = &cobra.Command{
	Use:   "fetch-tools",
	Short: "Downloads and unpacks the external build tools",
	Long: `Downloads and unpacks the tools listed in TOOLS.yml (dart-sass among
others) into the workspace .tools directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		update, err := cmd.Flags().GetBool("update")
		if err != nil {
			return err
		}

		root, err := pkg.GetProjectRoot()
		if err != nil {
			return err
		}

		return tools.FetchAll(root, update)
	},
}

func init() {
	rootCmd.AddCommand(fetchToolsCmd)
	fetchToolsCmd.Flags().BoolP("update", "u", false, "Update checksums")
}
