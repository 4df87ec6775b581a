package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "client-build",
	Short: "Builds the client UI assets",
	Long: `Bundles the client UI's TypeScript entry points and Sass stylesheets into
minified JavaScript and CSS. Without flags, both phases run (styles first).`,
	RunE: runBuild,
}

func init() {
	rootCmd.Flags().Bool("styles", false, "only build the stylesheets")
	rootCmd.Flags().Bool("scripts", false, "only build the scripts")
	rootCmd.Flags().Bool("no-cache", false, "disable the sass compiler cache")
	rootCmd.Flags().BoolP("dev", "d", false, "skip minification, place sourcemaps inline")
	rootCmd.Flags().BoolP("watch", "w", false, "rebuild whenever a source file changes (implies --dev)")
	rootCmd.Flags().Bool("compress", false, "write precompressed .br files next to the bundles")
	rootCmd.Flags().Bool("keep-unused-css", false, "skip the unused CSS removal pass")
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}
