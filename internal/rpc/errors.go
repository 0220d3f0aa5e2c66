package rpc

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeBadRequest          Code = "BAD_REQUEST"
	CodeUnauthorized        Code = "UNAUTHORIZED"
	CodeForbidden           Code = "FORBIDDEN"
	CodeNotFound            Code = "NOT_FOUND"
	CodeMethodNotSupported  Code = "METHOD_NOT_SUPPORTED"
	CodeConflict            Code = "CONFLICT"
	CodeInternalServerError Code = "INTERNAL_SERVER_ERROR"
)

var codeStatus = map[Code]int{
	CodeBadRequest:          http.StatusBadRequest,
	CodeUnauthorized:        http.StatusUnauthorized,
	CodeForbidden:           http.StatusForbidden,
	CodeNotFound:            http.StatusNotFound,
	CodeMethodNotSupported:  http.StatusMethodNotAllowed,
	CodeConflict:            http.StatusConflict,
	CodeInternalServerError: http.StatusInternalServerError,
}

func (c Code) HTTPStatus() int {
	if status, ok := codeStatus[c]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Error is a procedure failure with the code sent to the client.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code to err, using err's text as the client message.
func Wrap(code Code, err error) *Error {
	return &Error{Code: code, Message: err.Error(), Err: err}
}

// ErrorMapper translates domain errors into client errors. It returns nil for
// errors it does not recognise.
type ErrorMapper func(error) *Error

func toError(err error, mapper ErrorMapper) *Error {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	if mapper != nil {
		if mapped := mapper(err); mapped != nil {
			return mapped
		}
	}
	return &Error{Code: CodeInternalServerError, Message: "internal server error", Err: err}
}
