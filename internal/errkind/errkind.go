// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package errkind implements the error taxonomy from spec §7: errors are
// values carrying a Kind so stage and adapter code can switch on policy
// without string matching.
package errkind

import "fmt"

// Kind is one of the ten error categories in the policy table.
type Kind string

const (
	RemoteTransient         Kind = "remote_transient"
	RemoteRiskControl       Kind = "remote_risk_control"
	RemoteNotFound          Kind = "remote_not_found"
	RemoteForbidden         Kind = "remote_forbidden"
	MediaManifestUnparseable Kind = "media_manifest_unparseable"
	FilesystemRecoverable   Kind = "filesystem_recoverable"
	FilesystemFatal         Kind = "filesystem_fatal"
	DownloadPoolUnavailable Kind = "download_pool_unavailable"
	ConfigValidation        Kind = "config_validation"
	DatabaseTransient       Kind = "database_transient"
)

// Error is a Kind-carrying error value wrapping an underlying cause.
type Error struct {
	K       Kind
	Op      string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.K)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.K, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// Kind returns the error's taxonomy kind, satisfying the Kinder interface.
func (e *Error) Kind() Kind { return e.K }

// New constructs a Kind-carrying error for operation op.
func New(k Kind, op string, cause error) *Error {
	return &Error{K: k, Op: op, Cause: cause}
}

// Kinder is implemented by any error that carries a taxonomy Kind.
type Kinder interface {
	Kind() Kind
}

// KindOf extracts the Kind from err if it (or something it wraps)
// implements Kinder, and reports whether one was found.
func KindOf(err error) (Kind, bool) {
	for err != nil {
		if k, ok := err.(Kinder); ok {
			return k.Kind(), true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return "", false
}

// Retryable reports whether the policy table calls for an in-place retry
// (as opposed to a terminal failure, fallback, or abort).
func Retryable(k Kind) bool {
	switch k {
	case RemoteTransient, FilesystemRecoverable, DatabaseTransient:
		return true
	default:
		return false
	}
}
