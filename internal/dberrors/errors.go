// Package dberrors defines the sentinel error kinds shared across the
// storage and execution layers. Components wrap these with fmt.Errorf's
// %w verb so callers can still errors.Is against the kind.
package dberrors

import "errors"

var (
	// ErrStorageIO marks an underlying I/O failure: truncated file, magic
	// mismatch, or any os.File error surfaced from the pager.
	ErrStorageIO = errors.New("storage: I/O error")

	// ErrPageOutOfRange means a page id fell outside [0, page_count).
	ErrPageOutOfRange = errors.New("storage: page id out of range")

	// ErrOutOfPageSpace means a slotted page refused an insert; callers
	// recover by retrying against a new page.
	ErrOutOfPageSpace = errors.New("storage: out of page space")

	// ErrRecordDeleted means a read targeted a tombstoned slot.
	ErrRecordDeleted = errors.New("storage: record deleted")

	// ErrBufferPoolExhausted means every frame was pinned when the pool
	// needed to evict one. Indicates a pin/unpin bug in the caller.
	ErrBufferPoolExhausted = errors.New("storage: buffer pool exhausted")

	// ErrTableNotFound / ErrTableExists / ErrIndexNotFound / ErrIndexExists
	// are catalog violations.
	ErrTableNotFound = errors.New("catalog: table not found")
	ErrTableExists   = errors.New("catalog: table already exists")
	ErrIndexNotFound = errors.New("catalog: index not found")
	ErrIndexExists   = errors.New("catalog: index already exists")

	// ErrInvalidPlan / ErrUnsupportedOperator / ErrUnsupportedPredicate are
	// executor-level rejections of a malformed or unsupported plan.
	ErrInvalidPlan          = errors.New("executor: invalid plan")
	ErrUnsupportedOperator  = errors.New("executor: unsupported operator")
	ErrUnsupportedPredicate = errors.New("executor: unsupported predicate")

	// ErrTypeCoercion means a value could not be cast to a column's
	// declared type under strict coercion.
	ErrTypeCoercion = errors.New("executor: type coercion error")
)
