package errors

// ErrorCode is a string identifier for a specific failure category.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common error codes
const (
	CodeOK                 ErrorCode = "OK"
	CodeUnknown            ErrorCode = "COMMON_000"
	CodeInternal           ErrorCode = "COMMON_001"
	CodeInvalidParam       ErrorCode = "COMMON_002"
	CodeUnauthorized       ErrorCode = "COMMON_003"
	CodeForbidden          ErrorCode = "COMMON_004"
	CodeNotFound           ErrorCode = "COMMON_005"
	CodeConflict           ErrorCode = "COMMON_006"
	CodeRateLimit          ErrorCode = "COMMON_007"
	CodeServiceUnavailable ErrorCode = "COMMON_008"
	CodeTimeout            ErrorCode = "COMMON_009"
	CodeSerialization      ErrorCode = "COMMON_010"
	CodeDatabaseError      ErrorCode = "COMMON_011"
	CodeCacheError         ErrorCode = "COMMON_012"
	CodeMessagingError     ErrorCode = "COMMON_013"
	CodeConfigError        ErrorCode = "COMMON_014"
)

// Complex-plane mapping error codes
const (
	// CodeSectorExhausted signals that a domain's angle sector has no free
	// slots left.  Allocation never wraps around: aliasing two variables to
	// one angle would silently corrupt every later similarity computation.
	CodeSectorExhausted ErrorCode = "PLANE_001"

	// CodeMalformedObservation marks an input observation that is missing a
	// required field for its domain type (e.g. a non-numeric vital).  The
	// mapper drops the offending observation and continues.
	CodeMalformedObservation ErrorCode = "PLANE_002"

	CodeUnknownDomain ErrorCode = "PLANE_003"
)

// Diagnosis / reference-library error codes
const (
	CodeProfileNotFound    ErrorCode = "DIAG_001"
	CodeProfileInvalid     ErrorCode = "DIAG_002"
	CodeEncounterInvalid   ErrorCode = "DIAG_003"
	CodeEncounterNotFound  ErrorCode = "DIAG_004"
	CodeScoringFailed      ErrorCode = "DIAG_005"
	CodeLibraryBuildFailed ErrorCode = "DIAG_006"
)
