// Package errors provides the unified error handling system shared by the
// entry store, the knowledge repository and the sync engine. Every failure
// that crosses a package boundary is wrapped into an *Error carrying a
// machine-readable code; raw driver or transport errors never leak to callers.
package errors

// Code represents a unique error code for specific error scenarios.
type Code string

// Entry store error codes.
const (
	CodeStoreInit           Code = "STORE_INIT"
	CodeStoreOpen           Code = "STORE_OPEN"
	CodeStoreRead           Code = "STORE_READ"
	CodeStoreWrite          Code = "STORE_WRITE"
	CodeStoreDelete         Code = "STORE_DELETE"
	CodeStoreQuery          Code = "STORE_QUERY"
	CodeStoreBatch          Code = "STORE_BATCH"
	CodeStoreNotInitialized Code = "STORE_NOT_INITIALIZED"
)

// Repository error codes.
const (
	CodeEntryNotFound    Code = "ENTRY_NOT_FOUND"
	CodeLineageInvariant Code = "LINEAGE_INVARIANT"
	CodeSaveFailed       Code = "SAVE_FAILED"
	CodeInvalidEntry     Code = "INVALID_ENTRY"
)

// Sync engine error codes.
const (
	CodeRemoteFailed Code = "REMOTE_FAILED"
	CodeSyncTimeout  Code = "SYNC_TIMEOUT"
	CodeSyncOffline  Code = "SYNC_OFFLINE"
	CodeCircuitOpen  Code = "CIRCUIT_OPEN"
)

// Configuration error codes.
const (
	CodeConfigInvalid Code = "CONFIG_INVALID"
	CodeConfigLoad    Code = "CONFIG_LOAD"
)
