// directives.go defines the line-oriented directive dialect understood by the pre-processor.
// A directive is a line whose first non-blank character is '#'. Every directive line is replaced
// by an empty line in the output so line numbers of the surviving source stay stable.
//
//	#include "relative/path.wgsl"
//	#if NAME
//	#if !NAME
//	#endif
//	#define NAME [value]
//	#undef NAME
package shader

import (
	"strings"
)

// DirectiveType identifies the kind of directive parsed from a shader line.
type DirectiveType string

const (
	// DirectiveInclude splices another file in place of the directive line.
	DirectiveInclude DirectiveType = "include"

	// DirectiveIf opens a conditional block kept when the named macro is defined, or when it is
	// not defined for the negated form.
	DirectiveIf DirectiveType = "if"

	// DirectiveEndif closes the innermost conditional block.
	DirectiveEndif DirectiveType = "endif"

	// DirectiveDefine adds a macro to the active set. A define with a value is also substituted
	// literally into the surviving source.
	DirectiveDefine DirectiveType = "define"

	// DirectiveUndef removes a macro from the active set.
	DirectiveUndef DirectiveType = "undef"
)

// Directive is one parsed directive line.
type Directive struct {
	Type DirectiveType

	// Name is the include path, or the macro name for every other directive.
	Name string

	// Value is the optional replacement text of a define.
	Value string

	// Negated is set for "#if !NAME".
	Negated bool
}

// origin locates a line in the file it was read from.
type origin struct {
	file string
	line int
}

// sourceLine is one line of text paired with the file and line it came from.
type sourceLine struct {
	text string
	at   origin
}

func splitLines(file, source string) []sourceLine {
	raw := strings.Split(source, "\n")
	out := make([]sourceLine, len(raw))
	for i, text := range raw {
		out[i] = sourceLine{text: text, at: origin{file: file, line: i + 1}}
	}
	return out
}

func joinLines(lines []sourceLine) string {
	var sb strings.Builder
	for i, l := range lines {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(l.text)
	}
	return sb.String()
}

// parseDirective parses a line as a directive. It returns nil and no error for ordinary source lines,
// including lines starting with '#' that name no known directive.
//
// Parameters:
//   - line: the source line
//   - at: where the line came from, for error reporting
//
// Returns:
//   - *Directive: the parsed directive, or nil
//   - error: a *Error wrapping ErrSyntax for a known directive with a malformed argument
func parseDirective(line string, at origin) (*Directive, error) {
	trimmed := strings.TrimSpace(line)
	after, ok := strings.CutPrefix(trimmed, "#")
	if !ok {
		return nil, nil
	}

	keyword, rest, _ := strings.Cut(strings.TrimSpace(after), " ")
	rest = strings.TrimSpace(rest)

	switch DirectiveType(keyword) {
	case DirectiveInclude:
		name, ok := unquote(rest)
		if !ok {
			return nil, syntaxError(at, "#include expects a quoted path, got %q", rest)
		}
		return &Directive{Type: DirectiveInclude, Name: name}, nil
	case DirectiveIf:
		name, negated := strings.CutPrefix(rest, "!")
		name = strings.TrimSpace(name)
		if !isMacroName(name) {
			return nil, syntaxError(at, "#if expects a macro name, got %q", rest)
		}
		return &Directive{Type: DirectiveIf, Name: name, Negated: negated}, nil
	case DirectiveEndif:
		return &Directive{Type: DirectiveEndif}, nil
	case DirectiveDefine:
		name, value, _ := strings.Cut(rest, " ")
		if !isMacroName(name) {
			return nil, syntaxError(at, "#define expects a macro name, got %q", rest)
		}
		return &Directive{Type: DirectiveDefine, Name: name, Value: strings.TrimSpace(value)}, nil
	case DirectiveUndef:
		if !isMacroName(rest) {
			return nil, syntaxError(at, "#undef expects a macro name, got %q", rest)
		}
		return &Directive{Type: DirectiveUndef, Name: rest}, nil
	}
	return nil, nil
}

func unquote(s string) (string, bool) {
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return "", false
	}
	name := s[1 : len(s)-1]
	return name, name != ""
}

func isMacroName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
