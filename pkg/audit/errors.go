package audit

import "errors"

var (
	// ErrPersist wraps failures writing an audit record. It is logged, never
	// returned to the caller of an audited operation.
	ErrPersist = errors.New("failed to persist audit record")

	// ErrInvalidRecord indicates the record misses required fields.
	ErrInvalidRecord = errors.New("invalid audit record")

	// ErrStorageTimeout indicates a storage operation timed out.
	ErrStorageTimeout = errors.New("audit storage operation timed out")

	// ErrStorageNotAvailable indicates the storage backend has been closed.
	ErrStorageNotAvailable = errors.New("audit storage is unavailable")

	// ErrInvalidFilter indicates an unusable query filter.
	ErrInvalidFilter = errors.New("invalid audit filter")

	// ErrUnsupportedFormat is returned for unknown export formats.
	ErrUnsupportedFormat = errors.New("unsupported export format")
)
