package codegen

import (
	"bytes"

	"github.com/klauspost/asmfmt"

	"github.com/cwbudde/go-ual/internal/emitter"
)

// FormatDisassembly renders prog's full instruction tape and runs it
// through asmfmt.Format, so a `ualvm disasm` dump of generated code reads
// like gofmt'd Go assembly instead of a raw, unaligned instruction log.
func FormatDisassembly(prog *emitter.Program) (string, error) {
	var raw bytes.Buffer
	prog.Disassemble(&raw)

	formatted, err := asmfmt.Format(bytes.NewReader(raw.Bytes()))
	if err != nil {
		return raw.String(), err
	}
	return string(formatted), nil
}
