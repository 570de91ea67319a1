// Package cmd implements the ualvm command tree: run, verify, disasm,
// and version, following the teacher's cmd/dwscript/cmd layout exactly
// (a package-scoped rootCmd, persistent --verbose, subcommands
// registering themselves onto it from init()).
package cmd

import (
	"fmt"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var (
	// Version information (set by build flags).
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "ualvm",
	Short: "UAL managed-bytecode runtime",
	Long: `ualvm loads a UAL binary module, verifies its bytecode against the
type system, lowers each managed method into a typed IR, emits native
code for it, and invokes the module's Main(System.String[]) entry point.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(`{{with .Name}}{{printf "%%s " .}}{{end}}{{printf "version %%s" .Version}}
Commit: %s
Built:  %s
`, GitCommit, BuildDate))

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// colorEnabled reports whether diagnostics printed to stderr should carry
// ANSI color, deciding from the terminal the same way the teacher's CLI
// does (isatty against the stream actually being written to, not a
// blanket --color flag).
func colorEnabled(fd uintptr) bool {
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
