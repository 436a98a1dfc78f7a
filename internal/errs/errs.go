// Package errs defines the typed error kinds surfaced by the search engine core.
package errs

import "fmt"

// Kind identifies the category of a core error, per the error handling design.
type Kind string

const (
	// ConfigMissing is returned when an embedder or chat collaborator is called
	// without the credentials it needs.
	ConfigMissing Kind = "ConfigMissing"
	// EmbedderFailure covers network errors, model load failures, and dimension
	// mismatches from an EmbedderPort call.
	EmbedderFailure Kind = "EmbedderFailure"
	// StoreCorrupt is returned when the persisted store file is unreadable or
	// not valid JSON.
	StoreCorrupt Kind = "StoreCorrupt"
	// StoreIOFailure covers errors writing the store file to disk.
	StoreIOFailure Kind = "StoreIOFailure"
	// IgnoredFile is a non-error diagnostic for a file skipped due to a size or
	// count cap.
	IgnoredFile Kind = "IgnoredFile"
	// WatcherFailure covers platform event-source errors from the filesystem
	// watcher.
	WatcherFailure Kind = "WatcherFailure"
	// NotConfigured is returned by the Answerer when no ChatPort is wired.
	NotConfigured Kind = "NotConfigured"
)

// Error is the typed error value carried through the core. It wraps an
// underlying cause and records which of the seven kinds produced it, plus
// optional structured detail for diagnostics.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
	Details map[string]any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same Kind, so callers can
// use errors.Is(err, errs.New(errs.StoreCorrupt, "")) to classify failures.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New constructs an *Error of the given kind with no underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap constructs an *Error of the given kind wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WithDetail attaches a structured detail field and returns the receiver for
// chaining.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// KindOf returns the Kind of err if it is (or wraps) an *Error, and false
// otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if ok := as(err, &e); ok {
		return e.Kind, true
	}
	return "", false
}

func as(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
