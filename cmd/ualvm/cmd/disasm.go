package cmd

import (
	"fmt"

	"github.com/cwbudde/go-ual/internal/codegen"
	"github.com/cwbudde/go-ual/internal/emitter"
	"github.com/spf13/cobra"
)

var disasmAbiManifest string

var disasmCmd = &cobra.Command{
	Use:   "disasm FILE",
	Short: "Print the generated reference-backend instruction stream",
	Long: `Load and compile a UAL module exactly as "run" does, then print the
reference Emitter's recorded instruction tape for every managed method,
gofmt-style via asmfmt, instead of executing it.`,
	Args: cobra.ExactArgs(1),
	RunE: disasmModule,
}

func init() {
	rootCmd.AddCommand(disasmCmd)
	disasmCmd.Flags().StringVar(&disasmAbiManifest, "abi-manifest", "", "YAML file describing extern metadata for diagnostics")
}

func disasmModule(cmd *cobra.Command, args []string) error {
	path := args[0]
	m, _, err := loadModuleFile(path, disasmAbiManifest)
	if err != nil {
		return err
	}

	prog := emitter.NewProgram()
	if err := codegen.New(m, prog).CompileAll(); err != nil {
		return reportDiag(err)
	}

	text, err := codegen.FormatDisassembly(prog)
	if err != nil {
		// asmfmt couldn't parse the reference tape as Go asm (shouldn't
		// happen in practice, but the raw text is still useful): fall
		// back to printing it unformatted rather than failing the
		// command outright.
		fmt.Print(text)
		return nil
	}
	fmt.Print(text)
	return nil
}
