package lode

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

// Sentinel errors for storage failure classification.
// Use errors.Is(err, ErrXxx) for typed assertions.
var (
	// ErrPermissionDenied indicates a local permission failure (EACCES).
	ErrPermissionDenied = errors.New("permission denied")
	// ErrNotFound indicates the target path/resource does not exist (ENOENT, 404).
	ErrNotFound = errors.New("not found")
	// ErrDiskFull indicates storage is out of space (ENOSPC).
	ErrDiskFull = errors.New("no space left on device")
	// ErrTimeout indicates an operation timed out.
	ErrTimeout = errors.New("operation timed out")
	// ErrThrottled indicates rate limiting (429, SlowDown).
	ErrThrottled = errors.New("rate limited")
	// ErrAuth indicates authentication failure (no credentials, expired token).
	ErrAuth = errors.New("authentication failed")
	// ErrAccessDenied indicates authorization failure (valid creds but no permission).
	ErrAccessDenied = errors.New("access denied")
	// ErrNetwork indicates a network-level failure (connection refused, DNS).
	ErrNetwork = errors.New("network error")
	// ErrUnclassified is used when no rule matches.
	ErrUnclassified = errors.New("storage error")
)

// StorageError wraps an underlying error with storage classification.
type StorageError struct {
	// Kind is the sentinel error for classification (e.g., ErrPermissionDenied).
	Kind error
	// Op is the operation that failed ("write", "read", "list", "init").
	Op string
	// Path is the storage path involved, if any.
	Path string
	// Err is the underlying error.
	Err error
}

func (e *StorageError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v: %v", e.Op, e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As chain traversal.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is reports whether the error matches the target sentinel.
func (e *StorageError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

func wrap(op string, err error, path string) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Kind: classifyError(err), Op: op, Path: path, Err: err}
}

// WrapWriteError classifies and wraps a write error. Returns nil for nil.
func WrapWriteError(err error, path string) error { return wrap("write", err, path) }

// WrapReadError classifies and wraps a read error. Returns nil for nil.
func WrapReadError(err error, path string) error { return wrap("read", err, path) }

// WrapInitError classifies and wraps a client initialization error.
func WrapInitError(err error, dataset string) error { return wrap("init", err, dataset) }

// classifyRule maps lowercase message fragments to a sentinel.
// Rules are evaluated in order; the first match wins.
type classifyRule struct {
	kind     error
	patterns []string
}

var classifyRules = []classifyRule{
	{ErrAccessDenied, []string{"accessdenied", "forbidden", "403"}},
	{ErrPermissionDenied, []string{"permission denied", "eacces", "access denied"}},
	{ErrNotFound, []string{"no such file", "does not exist", "not found", "enoent", "404", "nosuchkey"}},
	{ErrDiskFull, []string{"no space left", "disk full", "enospc", "quota exceeded"}},
	{ErrTimeout, []string{"timeout", "timed out", "deadline exceeded"}},
	{ErrThrottled, []string{"slowdown", "rate exceeded", "throttl", "429", "toomanyrequests"}},
	{ErrAuth, []string{
		"nocredentialproviders", "credentials", "invalidaccesskeyid",
		"signaturedoesnotmatch", "expiredtoken", "401", "unauthorized",
	}},
	{ErrNetwork, []string{"connection refused", "no route to host", "network unreachable", "dns", "dial tcp"}},
}

// classifyError determines the sentinel for err. Typed errors are checked
// before message patterns.
func classifyError(err error) error {
	var timeoutErr interface{ Timeout() bool }
	switch {
	case errors.As(err, &timeoutErr) && timeoutErr.Timeout():
		return ErrTimeout
	case errors.Is(err, fs.ErrPermission):
		return ErrPermissionDenied
	case errors.Is(err, fs.ErrNotExist):
		return ErrNotFound
	}

	msg := strings.ToLower(err.Error())
	for _, rule := range classifyRules {
		for _, p := range rule.patterns {
			if strings.Contains(msg, p) {
				return rule.kind
			}
		}
	}
	return ErrUnclassified
}
