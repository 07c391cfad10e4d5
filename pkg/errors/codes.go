package errors

import (
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeDatabaseError      ErrorCode = "COMMON_012"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeMessagingError     ErrorCode = "COMMON_014"
	ErrCodeConfiguration      ErrorCode = "COMMON_015"
)

// Profile Module Error Codes
const (
	ErrCodeProfileNotFound      ErrorCode = "PRF_001"
	ErrCodeProfileInvalid       ErrorCode = "PRF_002"
	ErrCodeChangeLogWriteFailed ErrorCode = "PRF_003"
	ErrCodeChangeNotifyFailed   ErrorCode = "PRF_004"
)

// Outcome Module Error Codes
const (
	ErrCodeOutcomeInvalid       ErrorCode = "OUT_001"
	ErrCodeOutcomeMalformed     ErrorCode = "OUT_002"
	ErrCodeOutcomeWriteFailed   ErrorCode = "OUT_003"
	ErrCodePatternWriteFailed   ErrorCode = "OUT_004"
	ErrCodeSelectionWriteFailed ErrorCode = "OUT_005"
	ErrCodeOutcomeStoreTripped  ErrorCode = "OUT_006"
)

// Learning Module Error Codes
const (
	ErrCodeSimilarityWeightsInvalid ErrorCode = "LRN_001"
	ErrCodeLookupTablesInvalid      ErrorCode = "LRN_002"
	ErrCodePartialData              ErrorCode = "LRN_003"
)

// Aliases used by callers that speak in terms of the error taxonomy rather
// than module codes.
const (
	CodeOK          = ErrorCode("OK")
	CodeUnknown     = ErrorCode("UNKNOWN")
	CodeInternal    = ErrCodeInternal
	CodeNotFound    = ErrCodeNotFound
	CodeValidation  = ErrCodeValidation
	CodePersistence = ErrCodeDatabaseError
	CodePartialData = ErrCodePartialData
)

// ErrorCodeMessage maps ErrorCodes to default human-readable messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "operation timed out",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeDatabaseError:      "persistence failure",
	ErrCodeCacheError:         "cache failure",
	ErrCodeMessagingError:     "messaging failure",
	ErrCodeConfiguration:      "invalid configuration",

	ErrCodeProfileNotFound:      "business profile not found",
	ErrCodeProfileInvalid:       "invalid business profile",
	ErrCodeChangeLogWriteFailed: "failed to append profile changes",
	ErrCodeChangeNotifyFailed:   "failed to notify change subscribers",

	ErrCodeOutcomeInvalid:       "invalid export outcome",
	ErrCodeOutcomeMalformed:     "malformed export outcome record",
	ErrCodeOutcomeWriteFailed:   "failed to append export outcome",
	ErrCodePatternWriteFailed:   "failed to append success pattern",
	ErrCodeSelectionWriteFailed: "failed to append market selection",
	ErrCodeOutcomeStoreTripped:  "outcome store circuit open",

	ErrCodeSimilarityWeightsInvalid: "similarity weights invalid",
	ErrCodeLookupTablesInvalid:      "lookup tables invalid",
	ErrCodePartialData:              "partial data",
}

// persistenceCodes classify write/read failures against the durable store.
var persistenceCodes = map[ErrorCode]struct{}{
	ErrCodeDatabaseError:        {},
	ErrCodeChangeLogWriteFailed: {},
	ErrCodeOutcomeWriteFailed:   {},
	ErrCodePatternWriteFailed:   {},
	ErrCodeSelectionWriteFailed: {},
	ErrCodeOutcomeStoreTripped:  {},
}

// validationCodes classify caller input failures.
var validationCodes = map[ErrorCode]struct{}{
	ErrCodeValidation:     {},
	ErrCodeBadRequest:     {},
	ErrCodeProfileInvalid: {},
	ErrCodeOutcomeInvalid: {},
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 1 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
