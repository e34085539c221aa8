// Package errors provides structured error handling for quadfuse.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Index errors (vector index structure)
//   - 3XX: Source errors (external store adapters)
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIndex indicates vector index structural errors.
	CategoryIndex Category = "INDEX"
	// CategorySource indicates external source adapter errors.
	CategorySource Category = "SOURCE"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Index errors (200-299)
	ErrCodeDimensionMismatch = "ERR_201_DIMENSION_MISMATCH"
	ErrCodeDuplicateID       = "ERR_202_DUPLICATE_ID"
	ErrCodeUnknownID         = "ERR_203_UNKNOWN_ID"
	ErrCodeCorruptSnapshot   = "ERR_204_CORRUPT_SNAPSHOT"
	ErrCodeSnapshotVersion   = "ERR_205_SNAPSHOT_VERSION"

	// Source errors (300-399)
	ErrCodeSourceTimeout     = "ERR_301_SOURCE_TIMEOUT"
	ErrCodeSourceFailed      = "ERR_302_SOURCE_FAILED"
	ErrCodeSourceUnavailable = "ERR_303_SOURCE_UNAVAILABLE"

	// Validation errors (400-499)
	ErrCodeInvalidOptions   = "ERR_401_INVALID_OPTIONS"
	ErrCodeInvalidWeights   = "ERR_402_INVALID_WEIGHTS"
	ErrCodeQueryEmpty       = "ERR_403_QUERY_EMPTY"
	ErrCodeInvalidEmbedding = "ERR_404_INVALID_EMBEDDING"

	// Internal errors (500-599)
	ErrCodeInternal         = "ERR_501_INTERNAL"
	ErrCodeAllSourcesFailed = "ERR_502_ALL_SOURCES_FAILED"
	ErrCodeEmbeddingFailed  = "ERR_503_EMBEDDING_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Leading digit of the numeric portion
	// (e.g. '3' from "ERR_301_SOURCE_TIMEOUT").
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIndex
	case '3':
		return CategorySource
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode derives severity from the error code.
// Source errors are local to one source and survivable; everything else
// aborts the operation that raised it.
func severityFromCode(code string) Severity {
	if categoryFromCode(code) == CategorySource {
		return SeverityError
	}
	return SeverityFatal
}

// isRetryableCode reports whether operations failing with this code may be
// retried. Only transient source-level failures qualify; structural and
// validation errors never succeed on retry.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeSourceTimeout, ErrCodeSourceFailed, ErrCodeSourceUnavailable:
		return true
	default:
		return false
	}
}
