package shader

import (
	"errors"
	"fmt"
)

var (
	// ErrSyntax marks malformed directives: an unmatched #endif, an unterminated #if or a directive
	// missing its argument.
	ErrSyntax = errors.New("shader directive syntax error")

	// ErrInclude marks an #include whose target could not be read.
	ErrInclude = errors.New("shader include failed")
)

// Error is a preprocessing failure located at a line of a shader file.
type Error struct {
	// File is the path of the file holding the offending line.
	File string

	// Line is the 1-based line number within File.
	Line int

	// Msg describes the failure.
	Msg string

	// Err is ErrSyntax or ErrInclude, possibly joined with the underlying cause.
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func syntaxError(at origin, format string, args ...any) *Error {
	return &Error{File: at.file, Line: at.line, Msg: fmt.Sprintf(format, args...), Err: ErrSyntax}
}
