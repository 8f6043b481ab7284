// Copyright 2025 RagForge
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package errs defines the error kinds surfaced by service operations.
// Kinds are stable across transports: the dispatcher maps them to uniform
// result payloads, REST handlers map them to status codes.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure independently of the layer that produced it.
type Kind int

const (
	// Internal is the zero value: an unexpected failure.
	Internal Kind = iota
	// NotFound: the referenced KB, document, or session does not exist.
	NotFound
	// AlreadyExists: creation of something that is already present.
	AlreadyExists
	// InvalidArgument: the caller's input cannot be processed.
	InvalidArgument
	// ExtractionFailed: no extraction tier produced usable content.
	ExtractionFailed
	// Transient: the upstream call may succeed on retry.
	Transient
	// RateLimited: an upstream provider returned a quota error.
	RateLimited
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case AlreadyExists:
		return "already_exists"
	case InvalidArgument:
		return "invalid_argument"
	case ExtractionFailed:
		return "extraction_failed"
	case Transient:
		return "transient"
	case RateLimited:
		return "rate_limited"
	default:
		return "internal"
	}
}

// Error carries a kind, the operation that failed, and an operator-facing
// message. Message is what callers see in result payloads; Err is the
// wrapped cause for logs.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E constructs an Error. Message may be empty when Err speaks for itself.
func E(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// Ef constructs an Error with a formatted message and no wrapped cause.
func Ef(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// KindOf walks the error chain and returns the first Kind found,
// defaulting to Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether the error chain carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func IsNotFound(err error) bool      { return Is(err, NotFound) }
func IsAlreadyExists(err error) bool { return Is(err, AlreadyExists) }
func IsRateLimited(err error) bool   { return Is(err, RateLimited) }

// UserMessage returns the message a caller should see. Internal causes are
// not leaked: anything unclassified collapses to a generic message.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Message != "" {
			return e.Message
		}
		if e.Err != nil {
			return e.Err.Error()
		}
		return e.Kind.String()
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
