package tsfile

import "fmt"

// ParseError reports a document that is not a well-formed .ts catalog.
type ParseError struct {
	// Path is the file being parsed, empty when parsing bytes.
	Path string
	// Line is the 1-based input line where the problem was detected.
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("parsing %s:%d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("parsing line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IOError reports a catalog file that could not be read or written.
type IOError struct {
	// Op is "read" or "write".
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
