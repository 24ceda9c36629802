// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package apperr defines the closed set of error kinds surfaced by the
// repositories, the authenticator, and the HTTP API. Every error that
// reaches a client is an *Error with a stable Kind and Code.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind classifies an error for clients and for HTTP status mapping.
type Kind string

const (
	KindValidation        Kind = "validation_error"
	KindDuplicateIdentity Kind = "duplicate_identity"
	KindDuplicateSlug     Kind = "duplicate_slug"
	KindNotFound          Kind = "not_found"
	KindUnauthenticated   Kind = "unauthenticated"
	KindForbidden         Kind = "forbidden"
	KindLocked            Kind = "locked"
	KindConflict          Kind = "conflict"
	KindTimeout           Kind = "timeout"
	KindUnexpected        Kind = "unexpected"
)

// Status returns the HTTP status code for the kind.
func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindDuplicateIdentity, KindDuplicateSlug, KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindLocked:
		return http.StatusLocked
	case KindTimeout:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is the typed error carried across package boundaries.
type Error struct {
	Kind    Kind
	Code    string            // finer-grained machine code, e.g. "token_expired"
	Message string            // safe to show to clients
	Fields  map[string]string // field-level validation messages
	Err     error             // wrapped cause, never shown to clients

	RetryAfter time.Duration // set on Locked and rate-limit errors
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind (and code, when
// the target sets one). This lets callers write errors.Is(err, apperr.NotFound("")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code != "" && t.Code != e.Code {
		return false
	}
	return t.Kind == e.Kind
}

// Validation returns a field-level validation error.
func Validation(fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Code: "invalid_input", Message: "One or more fields are invalid.", Fields: fields}
}

// Invalid returns a validation error for a single field.
func Invalid(field, msg string) *Error {
	return Validation(map[string]string{field: msg})
}

func DuplicateIdentity(msg string) *Error {
	return &Error{Kind: KindDuplicateIdentity, Code: "duplicate_identity", Message: msg}
}

func DuplicateSlug(slug string) *Error {
	return &Error{Kind: KindDuplicateSlug, Code: "duplicate_slug", Message: fmt.Sprintf("Slug %q is already in use.", slug)}
}

func NotFound(what string) *Error {
	if what == "" {
		what = "Resource"
	}
	return &Error{Kind: KindNotFound, Code: "not_found", Message: what + " not found."}
}

func Unauthenticated(code, msg string) *Error {
	return &Error{Kind: KindUnauthenticated, Code: code, Message: msg}
}

func Forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Code: "forbidden", Message: msg}
}

func Locked(msg string) *Error {
	return &Error{Kind: KindLocked, Code: "account_locked", Message: msg}
}

// LockedFor returns a Locked error that tells the client how long to wait.
func LockedFor(wait time.Duration) *Error {
	wait = wait.Round(time.Second)
	if wait < time.Second {
		wait = time.Second
	}
	e := Locked(fmt.Sprintf("Account is temporarily locked. Try again in %s.", wait))
	e.RetryAfter = wait
	return e
}

func Conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Code: "conflict", Message: msg}
}

func Timeout(err error) *Error {
	return &Error{Kind: KindTimeout, Code: "timeout", Message: "The operation timed out. Please retry.", Err: err}
}

func Unexpected(err error) *Error {
	return &Error{Kind: KindUnexpected, Code: "unexpected", Message: "An unexpected error occurred.", Err: err}
}

// From classifies any error into an *Error. Typed errors pass through,
// deadline errors become Timeout, and everything else is Unexpected.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout(err)
	}
	return Unexpected(err)
}

// KindOf returns the kind of err after classification.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return From(err).Kind
}
