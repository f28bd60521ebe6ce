package docstore

import "errors"

// Error taxonomy for store operations.
//
// All errors returned by [Store.Initialize], [Store.Read], [Store.Write],
// and [Store.Update] wrap exactly one of these sentinels, so callers can
// dispatch with errors.Is.
var (
	// ErrNotFound means the collection file is absent and the store was
	// never initialized. Recoverable by calling [Store.Initialize].
	ErrNotFound = errors.New("collection not found")

	// ErrDocumentCorrupt means the collection file exists but its contents
	// are not a valid JSON object, and the retry budget is exhausted.
	// The file is left untouched so an operator can inspect it.
	ErrDocumentCorrupt = errors.New("collection file is not valid JSON")

	// ErrStorage means a filesystem operation (open, write, sync, rename,
	// remove) failed after the retry budget was exhausted.
	ErrStorage = errors.New("storage failure")
)

// Config errors.
var (
	ErrConfigNotFound = errors.New("config file not found")
	ErrConfigInvalid  = errors.New("invalid config file")
)

// errNotObject reports a parseable file whose root is not a JSON object.
// Surfaced wrapped in ErrDocumentCorrupt.
var errNotObject = errors.New("document root is not an object")
