// Package sig implements the pure string parser for UAL method
// signatures described in spec §4.2/§6:
//
//	RET WS CLS "::" NAME "(" ARGS? ")"   ARGS = TYPE ("," TYPE)*
//
// The scanner is a small hand-rolled cursor in the spirit of the
// teacher's lexer: no regular expressions, a handful of index-scanning
// helper methods, and explicit error returns rather than panics.
package sig

import (
	"fmt"
	"strings"
)

// Signature is the parsed form of a method signature string (spec §3
// "MethodSignature").
type Signature struct {
	Full       string
	ReturnType string
	ClassName  string
	MethodName string
	Args       []string
}

// ErrBadSignature is returned (wrapped with detail) when the text does not
// match the grammar.
type ErrBadSignature struct {
	Text   string
	Reason string
}

func (e *ErrBadSignature) Error() string {
	return fmt.Sprintf("bad signature %q: %s", e.Text, e.Reason)
}

// Parse parses a full signature string into a Signature.
func Parse(text string) (*Signature, error) {
	s := &scanner{src: text, full: text}
	return s.parse()
}

type scanner struct {
	src  string
	pos  int
	full string
}

func (s *scanner) bad(reason string) error {
	return &ErrBadSignature{Text: s.full, Reason: reason}
}

func (s *scanner) skipWS() {
	for s.pos < len(s.src) && (s.src[s.pos] == ' ' || s.src[s.pos] == '\t') {
		s.pos++
	}
}

// readUntil scans forward until any byte in stop is found, returning the
// text consumed (not including the stop byte) and whether one was found.
func (s *scanner) readUntil(stop string) (string, bool) {
	start := s.pos
	for s.pos < len(s.src) {
		if strings.IndexByte(stop, s.src[s.pos]) >= 0 {
			return s.src[start:s.pos], true
		}
		s.pos++
	}
	return s.src[start:], false
}

func (s *scanner) consumeLiteral(lit string) error {
	if !strings.HasPrefix(s.src[s.pos:], lit) {
		return s.bad(fmt.Sprintf("expected %q at position %d", lit, s.pos))
	}
	s.pos += len(lit)
	return nil
}

func (s *scanner) parse() (*Signature, error) {
	s.skipWS()

	// Return type: everything up to the next whitespace run.
	retType, ok := s.readUntil(" \t")
	if !ok || retType == "" {
		return nil, s.bad("missing return type")
	}
	s.skipWS()

	// Class name: everything up to "::".
	idx := strings.Index(s.src[s.pos:], "::")
	if idx < 0 {
		return nil, s.bad("missing '::' delimiter")
	}
	className := s.src[s.pos : s.pos+idx]
	if className == "" {
		return nil, s.bad("empty class name")
	}
	s.pos += idx
	if err := s.consumeLiteral("::"); err != nil {
		return nil, err
	}

	// Method name: everything up to "(".
	name, ok := s.readUntil("(")
	if !ok || name == "" {
		return nil, s.bad("missing method name or '(' delimiter")
	}
	if err := s.consumeLiteral("("); err != nil {
		return nil, err
	}

	argsText, ok := s.readUntil(")")
	if !ok {
		return nil, s.bad("missing ')' delimiter")
	}
	if err := s.consumeLiteral(")"); err != nil {
		return nil, err
	}

	args := splitArgs(argsText)

	return &Signature{
		Full:       s.full,
		ReturnType: retType,
		ClassName:  className,
		MethodName: name,
		Args:       args,
	}, nil
}

// splitArgs splits a comma-separated argument-type list. An empty slot
// (the whole text is blank) means a zero-argument method (spec §4.2).
func splitArgs(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	parts := strings.Split(text, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

// Less orders signatures by their full text, ascending (s.Full <
// other.Full), a total order usable for keying ordered maps of signatures.
func (s *Signature) Less(other *Signature) bool {
	return s.Full < other.Full
}

// IsMain reports whether this is the entry-point signature the Invoker
// searches for: a method named Main taking a single System.String[]
// argument (spec §4.6).
func (s *Signature) IsMain() bool {
	return s.MethodName == "Main" && len(s.Args) == 1 && s.Args[0] == "System.String[]"
}
