package core

import (
	"errors"
	"fmt"

	"github.com/dosco/docorm/core/internal/qcode"
)

var (
	// ErrNotFound is returned by the OrFail accessors and by Update when no
	// document matched.
	ErrNotFound = errors.New("document not found")

	// ErrInvalidOperator is returned for a where operator outside the
	// supported set.
	ErrInvalidOperator = qcode.ErrInvalidOperator

	// ErrInvalidArgument is returned for malformed builder arguments, for
	// example an unknown relation alias or a bad order direction.
	ErrInvalidArgument = qcode.ErrInvalidArgument

	ErrItemNotFound       = errors.New("item not found")
	ErrMultipleItemsFound = errors.New("multiple items found")
)

// QueryError wraps every failure of a terminal builder call.
type QueryError struct {
	Op         string
	Collection string
	Err        error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("docorm: %s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// TransactionError is returned by Transaction once it gives up.
type TransactionError struct {
	Attempts int
	Err      error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("docorm: transaction failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}
