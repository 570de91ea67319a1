package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var showModules bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display detailed version information including commit hash and build date.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ualvm version %s\n", Version)
		fmt.Printf("Git Commit: %s\n", GitCommit)
		fmt.Printf("Build Date: %s\n", BuildDate)
		if showModules {
			fmt.Println("\nEach `ualvm run`/`verify` invocation assigns its loaded module a fresh build id (see --verbose output) for diagnostics across multi-module debugging sessions; this process has loaded none yet.")
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVar(&showModules, "modules", false, "describe per-module build-id diagnostics")
}
