package pricetable

import (
	"errors"
	"fmt"
)

// ErrSource classifies every failure to obtain a usable price table.
var ErrSource = errors.New("pricetable: source error")

// SourceError reports an unreachable, empty or malformed price source. The
// previously loaded table always stays in effect.
type SourceError struct {
	Op        string
	Retryable bool
	Err       error
}

func (e *SourceError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("pricetable %s failed", e.Op)
	}
	return fmt.Sprintf("pricetable %s: %v", e.Op, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrSource) hold for every SourceError.
func (e *SourceError) Is(target error) bool { return target == ErrSource }

// IsRetryable reports whether err is a SourceError worth retrying.
func IsRetryable(err error) bool {
	var se *SourceError
	return errors.As(err, &se) && se.Retryable
}
