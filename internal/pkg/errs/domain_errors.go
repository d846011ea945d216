package errs

import "errors"

// Cross-layer sentinels shared by handlers and use cases
var (
	// Input errors
	ErrInvalidSelection = errors.New("invalid cell selection")
	ErrUnauthorized     = errors.New("unauthorized")

	// Store errors
	ErrStoreUnavailable = errors.New("store unavailable")

	// Operation errors
	ErrDatabaseOperationFailed = errors.New("database operation failed")
)
