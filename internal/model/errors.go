package model

import (
	"errors"
	"fmt"
)

// NotFoundError means no place identifier could be resolved from a URL.
type NotFoundError struct {
	URL      string
	FinalURL string
}

func (e *NotFoundError) Error() string {
	if e.FinalURL != "" && e.FinalURL != e.URL {
		return fmt.Sprintf("place id not found: %s (resolved to %s)", e.URL, e.FinalURL)
	}
	return fmt.Sprintf("place id not found: %s", e.URL)
}

// NetworkError means the target host was unreachable or timed out.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error for %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// BlockedError means the target page showed an anti-automation marker.
type BlockedError struct {
	URL    string
	Marker string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("blocked by target site at %s (marker %q)", e.URL, e.Marker)
}

// SessionError means a browser session could not be created or torn down.
type SessionError struct {
	Op  string
	Err error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("browser session %s: %v", e.Op, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

// IsNotFound reports whether err (or any error it wraps) is a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsNetwork reports whether err (or any error it wraps) is a NetworkError.
func IsNetwork(err error) bool {
	var target *NetworkError
	return errors.As(err, &target)
}

// IsBlocked reports whether err (or any error it wraps) is a BlockedError.
func IsBlocked(err error) bool {
	var target *BlockedError
	return errors.As(err, &target)
}

// IsSession reports whether err (or any error it wraps) is a SessionError.
func IsSession(err error) bool {
	var target *SessionError
	return errors.As(err, &target)
}
