package media

import "errors"

var (
	// ErrStoreUnavailable means no object store is configured.
	ErrStoreUnavailable = errors.New("object store not configured")
	// ErrObjectNotFound means the deterministic key has no stored object.
	ErrObjectNotFound = errors.New("stored object not found")
)
