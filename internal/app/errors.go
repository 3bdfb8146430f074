package app

import (
	"errors"
	"fmt"

	"github.com/neuroti/Psi/internal/usage"
)

// Category groups error codes by the pipeline stage that produced them.
type Category string

const (
	CategoryValidation Category = "validation"
	CategoryQuota      Category = "quota"
	CategoryNotFound   Category = "not_found"
	CategoryUpstream   Category = "upstream"
)

const (
	CodeMissingField      = "PSI-VAL-2002"
	CodeHRVOutOfRange     = "PSI-VAL-2010"
	CodeRateOutOfRange    = "PSI-VAL-2011"
	CodeFileTooLarge      = "PSI-VAL-2020"
	CodeUnsupportedType   = "PSI-VAL-2021"
	CodeFileCorrupted     = "PSI-VAL-2022"
	CodeInvalidDimensions = "PSI-VAL-2023"
	CodeTooManyFiles      = "PSI-VAL-2024"
	CodeInvalidLimit      = "PSI-VAL-2031"
	CodeInvalidRange      = "PSI-VAL-2032"

	CodeDailyLimit         = "PSI-RATE-4002"
	CodeServiceUnavailable = "PSI-SVC-5002"
	CodeClassifierFailed   = "PSI-SVC-5011"

	CodeNoFoodDetected = "PSI-IMG-7002"
	CodeRecipeNotFound = "PSI-RES-3012"

	CodeStorageFailed = "PSI-DB-6002"
	CodeNotRecorded   = "PSI-DB-6003"
)

// Error is returned by every App operation. Message is safe to show to a
// user. Err is the underlying cause and is only meant for logs.
type Error struct {
	Category Category
	Code     string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(category Category, code, message string, err error) *Error {
	return &Error{Category: category, Code: code, Message: message, Err: err}
}

// quotaError maps a usage.Ledger Allow failure.
func quotaError(err error, limit int) *Error {
	if errors.Is(err, usage.ErrLimitReached) {
		return newError(CategoryQuota, CodeDailyLimit,
			fmt.Sprintf("You've reached your daily limit of %d analyses. Upgrade to Premium for unlimited access!", limit), err)
	}
	return newError(CategoryQuota, CodeServiceUnavailable,
		"Our service is temporarily unavailable. Please try again in a few moments.", err)
}

func storageError(err error) *Error {
	return newError(CategoryUpstream, CodeStorageFailed,
		"We're experiencing technical difficulties. Please try again later.", err)
}

func notRecordedError(err error) *Error {
	return newError(CategoryUpstream, CodeNotRecorded,
		"Your request was processed but could not be recorded. Please try again later.", err)
}
