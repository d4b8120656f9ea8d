package model

import (
	"errors"
	"fmt"
)

// Failure is a categorized, user-facing outcome. Every engine entry point returns
// either nil, a *Failure, or an error wrapping one.
type Failure struct {
	Code    Code
	Message string
	Err     error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %v", f.Message, f.Err)
	}
	return f.Message
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Is matches another *Failure by code, so errors.Is(err, model.ErrNotFound) works
// against any not_found failure.
func (f *Failure) Is(target error) bool {
	t, ok := target.(*Failure)
	if !ok {
		return false
	}
	return t.Code == f.Code && t.Message == ""
}

// Fail builds a Failure with a formatted message.
func Fail(code Code, format string, args ...any) *Failure {
	return &Failure{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds a Failure around an underlying cause.
func Wrap(code Code, err error, format string, args ...any) *Failure {
	return &Failure{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// Code sentinels for errors.Is matching.
var (
	ErrUnknownCommand   = &Failure{Code: CodeUnknownCommand}
	ErrInvalidArgs      = &Failure{Code: CodeInvalidArgs}
	ErrPermissionDenied = &Failure{Code: CodePermissionDenied}
	ErrNetDenied        = &Failure{Code: CodeNetDenied}
	ErrNotFound         = &Failure{Code: CodeNotFound}
	ErrPortClosed       = &Failure{Code: CodePortClosed}
	ErrConflict         = &Failure{Code: CodeConflict}
	ErrAuthFailed       = &Failure{Code: CodeAuthFailed}
	ErrRateLimited      = &Failure{Code: CodeRateLimited}
	ErrInternal         = &Failure{Code: CodeInternalError}
)

// CodeOf maps any error to a code. nil is ok; errors without a Failure in their
// chain are internal errors.
func CodeOf(err error) Code {
	if err == nil {
		return CodeOK
	}
	var f *Failure
	if errors.As(err, &f) {
		return f.Code
	}
	return CodeInternalError
}

// MessageOf returns the user-facing message of an error, or "" for nil.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var f *Failure
	if errors.As(err, &f) && f.Message != "" {
		return f.Message
	}
	return err.Error()
}

// ResultMap renders an error the way script-visible result maps carry it.
func ResultMap(err error) map[string]any {
	if err == nil {
		return map[string]any{"ok": true, "code": string(CodeOK)}
	}
	return map[string]any{
		"ok":    false,
		"code":  string(CodeOf(err)),
		"error": MessageOf(err),
	}
}
