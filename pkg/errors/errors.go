package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/opencontainers/go-digest"
)

const (
	ErrCodeItemUnknown       ErrCode = "ITEM_UNKNOWN"
	ErrCodeIndexUnknown      ErrCode = "INDEX_UNKNOWN"
	ErrCodeDigestInvalid     ErrCode = "DIGEST_INVALID"
	ErrCodeBenchmarkUnknown  ErrCode = "BENCHMARK_UNKNOWN"
	ErrCodeSubmissionInvalid ErrCode = "SUBMISSION_INVALID"
	ErrCodeSubmissionUnknown ErrCode = "SUBMISSION_UNKNOWN"
	ErrCodeEntryInvalid      ErrCode = "ENTRY_INVALID"
	ErrCodeSizeInvalid       ErrCode = "SIZE_INVALID"
	ErrCodeUnauthorized      ErrCode = "UNAUTHORIZED"
	ErrCodeUnsupported       ErrCode = "UNSUPPORTED"
	ErrCodeInvalidParameter  ErrCode = "INVALID_PARAMETER"
	ErrCodeUnknown           ErrCode = "UNKNOWN"
	ErrCodeInternal          ErrCode = "INTERNAL"
)

type ErrCode string

// ErrorInfo is the error payload exchanged between zrc and zrcd. The same
// value is returned as an error on the client side.
type ErrorInfo struct {
	HttpStatus int     `json:"-"`
	Code       ErrCode `json:"code"`
	Message    string  `json:"message"`
	Detail     string  `json:"detail"`
}

func (e ErrorInfo) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func IsErrCode(err error, code ErrCode) bool {
	if err == nil {
		return false
	}
	info := ErrorInfo{}
	if errors.As(err, &info) {
		return info.Code == code
	}
	return false
}

func NewUnauthorizedError(msg string) ErrorInfo {
	return ErrorInfo{HttpStatus: http.StatusUnauthorized, Code: ErrCodeUnauthorized, Message: msg}
}

func NewUnsupportedError(msg string) ErrorInfo {
	return ErrorInfo{HttpStatus: http.StatusNotImplemented, Code: ErrCodeUnsupported, Message: msg}
}

func NewInternalError(err error) ErrorInfo {
	return ErrorInfo{HttpStatus: http.StatusInternalServerError, Code: ErrCodeInternal, Message: err.Error()}
}

func NewDigestInvalidError(got string) ErrorInfo {
	return ErrorInfo{HttpStatus: http.StatusBadRequest, Code: ErrCodeDigestInvalid, Message: fmt.Sprintf("digest invalid: %s", got)}
}

func NewIndexUnknownError(kind string) ErrorInfo {
	return ErrorInfo{HttpStatus: http.StatusNotFound, Code: ErrCodeIndexUnknown, Message: fmt.Sprintf("index: %s not found", kind)}
}

func NewItemUnknownError(name string) ErrorInfo {
	return ErrorInfo{HttpStatus: http.StatusNotFound, Code: ErrCodeItemUnknown, Message: fmt.Sprintf("item: %s not found", name)}
}

func NewBlobUnknownError(digest digest.Digest) ErrorInfo {
	return ErrorInfo{HttpStatus: http.StatusNotFound, Code: ErrCodeItemUnknown, Message: fmt.Sprintf("blob: %s not found", digest.String())}
}

func NewBenchmarkUnknownError(name string) ErrorInfo {
	return ErrorInfo{HttpStatus: http.StatusNotFound, Code: ErrCodeBenchmarkUnknown, Message: fmt.Sprintf("benchmark: %s not found", name)}
}

func NewSubmissionUnknownError(id string) ErrorInfo {
	return ErrorInfo{HttpStatus: http.StatusNotFound, Code: ErrCodeSubmissionUnknown, Message: fmt.Sprintf("submission: %s not found", id)}
}

func NewSubmissionInvalidError(err error) ErrorInfo {
	return ErrorInfo{HttpStatus: http.StatusBadRequest, Code: ErrCodeSubmissionInvalid, Message: err.Error()}
}

func NewEntryInvalidError(err error) ErrorInfo {
	return ErrorInfo{HttpStatus: http.StatusBadRequest, Code: ErrCodeEntryInvalid, Message: err.Error()}
}

func NewContentTypeInvalidError(got string) ErrorInfo {
	return ErrorInfo{HttpStatus: http.StatusBadRequest, Code: ErrCodeInvalidParameter, Message: fmt.Sprintf("content type invalid: %s", got)}
}

func NewContentLengthInvalidError(msg string) ErrorInfo {
	return ErrorInfo{HttpStatus: http.StatusBadRequest, Code: ErrCodeSizeInvalid, Message: fmt.Sprintf("content length: %s", msg)}
}

func NewParameterInvalidError(msg string) ErrorInfo {
	return ErrorInfo{HttpStatus: http.StatusBadRequest, Code: ErrCodeInvalidParameter, Message: msg}
}
