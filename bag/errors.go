// Package bag implements the Bag engine: a sparse associative array from
// fixed-width unsigned keys to 64-bit counters, with arithmetic update
// primitives, auto-widening, and persistence via the stream codec.
package bag

import "fmt"

// Error is the Bag error taxonomy.
type Error string

const (
	Success      Error = ""
	ErrMemory    Error = "allocation failure"
	ErrKeyNotFound Error = "key not found"
	ErrInput     Error = "bad input"
	ErrOpBounds  Error = "operation out of bounds"
	ErrOutput    Error = "output error"
	ErrRead      Error = "read error"
	ErrHeader    Error = "invalid header"
	ErrKeyRange  Error = "key does not fit current width"
	ErrModified  Error = "bag modified since iterator bind"
)

func (e Error) Error() string {
	if e == Success {
		return "success"
	}
	return string(e)
}

type wrappedError struct {
	code Error
	err  error
}

func (w *wrappedError) Error() string { return fmt.Sprintf("%s: %s", w.code, w.err) }
func (w *wrappedError) Unwrap() error { return w.err }
func (w *wrappedError) Is(target error) bool {
	code, ok := target.(Error)
	return ok && code == w.code
}

// Wrap attaches an underlying cause to e.
func (e Error) Wrap(err error) error {
	if err == nil {
		return e
	}
	return &wrappedError{code: e, err: err}
}
