package scan

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vireodb/partscan/internal/wire"
)

// ErrExhausted is returned by Next once HasNext reports false.
var ErrExhausted = errors.New("scan iterator has no more data")

// PartError is a storage-reported terminal failure of one partition.
type PartError struct {
	PartID int32
	Code   wire.ErrorCode
}

func (e *PartError) Error() string {
	return fmt.Sprintf("partition %d scan failed: code=%s", e.PartID, e.Code)
}

// AggregateError collects the per-host errors of a failed round. Whether a
// round with errors fails at all depends on the partial-success policy.
type AggregateError struct {
	Errs []error
}

func (e *AggregateError) Error() string {
	msgs := make([]string, 0, len(e.Errs))
	for _, err := range e.Errs {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("scan round failed with %d error(s): %s", len(e.Errs), strings.Join(msgs, "; "))
}

// Unwrap exposes the underlying errors to errors.Is and errors.As.
func (e *AggregateError) Unwrap() []error {
	return e.Errs
}
