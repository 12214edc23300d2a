package domain

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes every expected validation failure. Callers branch on
// the code, users read the message.
type ErrorCode string

const (
	CodeMissingField     ErrorCode = "MissingField"
	CodeDuplicateID      ErrorCode = "DuplicateId"
	CodeInvalidType      ErrorCode = "InvalidType"
	CodeUnknownReference ErrorCode = "UnknownReference"
	CodeInvalidEndpoints ErrorCode = "InvalidEndpoints"
	CodePolicyViolation  ErrorCode = "PolicyViolation"
	CodeEmbeddedPayload  ErrorCode = "EmbeddedPayloadRejected"
	CodeGovernanceBlock  ErrorCode = "GovernanceBlocked"
)

type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf returns the category of err, or "" when err is not a domain error.
func CodeOf(err error) ErrorCode {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
