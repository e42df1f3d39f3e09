package common

import "errors"

// ErrNotFound is returned when the requested object is missing, tombstoned,
// truncated or corrupted on disk. Partial-write and crash remnants are
// deliberately reported as absent rather than as I/O failures.
var ErrNotFound = errors.New("object not found")

// ErrInvalidArgument is returned before any I/O when the caller's request
// cannot be served, e.g. a block value larger than the configured block size.
var ErrInvalidArgument = errors.New("invalid user argument")

// ErrConfig is returned by partition startup when the supplied settings are
// incomplete or conflict with what the partition's version file records.
// It is fatal: the partition does not come up.
var ErrConfig = errors.New("invalid backend configuration")

// ErrReadOnly MUST be returned for modifying operations when the partition
// was opened in read-only mode.
var ErrReadOnly = errors.New("opened as read-only")
