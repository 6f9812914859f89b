package db

import (
	"errors"
	"fmt"
)

// ErrKeyNotFound reports a missing key. Backends translate their own
// nil/absent signal into this sentinel so callers branch on one error.
var ErrKeyNotFound = errors.New("db: key not found")

// Command names used as Error.Op values.
const (
	OpGet    = "GET"
	OpSet    = "SET"
	OpIncrBy = "INCRBY"
	OpExpire = "EXPIRE"
)

// Error carries the failed command name alongside the backend error.
type Error struct {
	Op  string
	Err error
}

// Wrap attaches op to err. A nil err yields nil.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *Error) Unwrap() error { return e.Err }
