// Command ualvm loads, verifies, compiles, and runs UAL bytecode
// modules.
package main

import (
	"fmt"
	"os"

	"github.com/cwbudde/go-ual/cmd/ualvm/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
