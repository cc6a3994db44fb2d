package vst3

import (
	"errors"
	"fmt"
)

// Result is a raw result code returned by a native plugin call. Zero is
// success; every other value is some flavor of failure. The exact
// non-zero values are plugin-defined and only useful for diagnostics.
type Result int32

const (
	ResultOK             Result = 0
	ResultFalse          Result = 1
	ResultInvalidArg     Result = 2
	ResultNotImplemented Result = 3
	ResultInternalError  Result = 4
)

// Err converts a result code into an error, nil for success. Plugin code
// is untrusted, so callers must check every native result through this
// instead of letting a failure propagate as a success.
func (r Result) Err() error {
	if r == ResultOK {
		return nil
	}
	return &ResultError{Code: r}
}

// ResultError wraps a non-zero native result code.
type ResultError struct {
	Code Result
}

func (e *ResultError) Error() string {
	return fmt.Sprintf("plugin call failed (result %d)", int32(e.Code))
}

// ErrEventListFull is returned when a block carries more events than the
// pre-sized event list can hold. The list never grows mid-block.
var ErrEventListFull = errors.New("event list full")
