package cmd

import (
	"fmt"
	"os"

	"github.com/cwbudde/go-ual/internal/verifier"
	"github.com/spf13/cobra"
)

var verifyAbiManifest string

var verifyCmd = &cobra.Command{
	Use:   "verify FILE",
	Short: "Load and verify a UAL module without running it",
	Long: `Load a UAL binary module, compile every class's method table, and
run the verifier's abstract interpretation over each managed method's
opcode stream, reporting the first malformed-UAL or unresolved-extern
error without emitting or executing any code.`,
	Args: cobra.ExactArgs(1),
	RunE: verifyModule,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().StringVar(&verifyAbiManifest, "abi-manifest", "", "YAML file describing extern metadata for diagnostics")
}

func verifyModule(cmd *cobra.Command, args []string) error {
	path := args[0]
	m, _, err := loadModuleFile(path, verifyAbiManifest)
	if err != nil {
		return err
	}
	if err := compileAllClasses(m); err != nil {
		return reportDiag(err)
	}

	checked := 0
	for _, method := range m.AllMethods() {
		if !method.IsManaged {
			continue
		}
		if _, verr := verifier.Verify(m, method); verr != nil {
			return reportDiag(verr)
		}
		checked++
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "module %s: build %s, %d managed method(s) verified\n", path, m.BuildID, checked)
	}
	fmt.Printf("%s: OK (%d managed method(s))\n", path, checked)
	return nil
}
