// Package diag provides the fatal-error taxonomy and formatting used by
// every loading stage of the UAL runtime: BinaryReader, SignatureParser,
// Module/ClassLoader, Verifier+IRBuilder, and CodeGen.
//
// All errors produced here are load-time fatal: the core never attempts
// partial recovery (spec §7). Callers surface a *Error to the CLI, which
// prints one diagnostic line and exits nonzero.
package diag

import (
	"fmt"
	"strings"
)

// Kind discriminates the error taxonomy from spec §7.
type Kind string

const (
	ShortRead          Kind = "ShortRead"
	BadSignature       Kind = "BadSignature"
	UnknownType        Kind = "UnknownType"
	UnknownOpcode      Kind = "UnknownOpcode"
	MalformedUAL       Kind = "MalformedUAL"
	BadBranchTarget    Kind = "BadBranchTarget"
	UnresolvedExtern   Kind = "UnresolvedExtern"
	DuplicateSignature Kind = "DuplicateSignature"
	MissingEntryPoint  Kind = "MissingEntryPoint"
)

// MalformedKind further discriminates MalformedUAL errors.
type MalformedKind string

const (
	TooFewOperands     MalformedKind = "TooFewOperands"
	TypeMismatch       MalformedKind = "TypeMismatch"
	BadReturn          MalformedKind = "BadReturn"
	ArgTypeMismatch    MalformedKind = "ArgTypeMismatch"
	DuplicateNodeOffset MalformedKind = "DuplicateNodeOffset"
)

// Site locates an error within a loaded module: the owning class/method
// and, where applicable, the UAL byte offset of the opcode that failed.
type Site struct {
	Class  string
	Method string
	Offset int // -1 if not applicable
}

func (s Site) String() string {
	if s.Class == "" && s.Method == "" {
		return ""
	}
	if s.Offset < 0 {
		return fmt.Sprintf("%s::%s", s.Class, s.Method)
	}
	return fmt.Sprintf("%s::%s@%d", s.Class, s.Method, s.Offset)
}

// Error is the single error type every stage returns. It always carries a
// Kind; Malformed is only meaningful when Kind == MalformedUAL.
type Error struct {
	Kind      Kind
	Malformed MalformedKind
	Site      Site
	Message   string
}

func New(kind Kind, site Site, format string, args ...any) *Error {
	return &Error{Kind: kind, Site: site, Message: fmt.Sprintf(format, args...)}
}

func Malformed(kind MalformedKind, site Site, format string, args ...any) *Error {
	return &Error{Kind: MalformedUAL, Malformed: kind, Site: site, Message: fmt.Sprintf(format, args...)}
}

// Error implements the error interface with no color.
func (e *Error) Error() string { return e.Format(false) }

// Format renders the single diagnostic line the CLI prints, identifying
// the error kind and the class/method/offset at which it occurred, as
// required by spec §7's "user-visible behavior".
func (e *Error) Format(color bool) string {
	var sb strings.Builder

	kind := string(e.Kind)
	if e.Kind == MalformedUAL && e.Malformed != "" {
		kind = fmt.Sprintf("%s(%s)", e.Kind, e.Malformed)
	}

	if color {
		sb.WriteString("\033[1;31m") // Red bold
	}
	sb.WriteString(kind)
	if color {
		sb.WriteString("\033[0m")
	}

	if site := e.Site.String(); site != "" {
		sb.WriteString(" at ")
		if color {
			sb.WriteString("\033[1m")
		}
		sb.WriteString(site)
		if color {
			sb.WriteString("\033[0m")
		}
	}

	sb.WriteString(": ")
	sb.WriteString(e.Message)
	return sb.String()
}
