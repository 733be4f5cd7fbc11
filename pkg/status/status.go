// Package status holds the small set of status codes shared by the amo and
// udt packages. It mirrors the UCS status model the underlying datagram and
// atomic providers speak: a handful of named outcomes plus pass-through of
// whatever error the provider itself returned.
package status

import "fmt"

// Code is a provider-facing outcome. Only OK is not an error.
type Code int

const (
	// OK indicates the operation completed successfully.
	OK Code = iota
	// InvalidParam indicates a parameter (alignment, length, width) violated
	// a documented precondition.
	InvalidParam
	// NoResource indicates the provider has no room to accept the request
	// right now; the caller should progress and retry.
	NoResource
	// inProgress is never returned to a caller of the AMO API: it is the
	// internal signal a provider reports to the completion-count loop in
	// pkg/amo to mean "keep progressing".
	inProgress
	// NoDevice indicates the provider has no transport available at all.
	NoDevice
)

func (c Code) String() string {
	switch c {
	case OK:
		return "ok"
	case InvalidParam:
		return "invalid parameter"
	case NoResource:
		return "no resource"
	case inProgress:
		return "in progress"
	case NoDevice:
		return "no device"
	default:
		return fmt.Sprintf("status(%d)", int(c))
	}
}

// Error implements error so a Code can be returned directly from a function
// that otherwise returns a plain error.
func (c Code) Error() string {
	return c.String()
}

// IsInProgress reports whether c is the internal "still working" signal.
// Exported as a predicate (with InProgress as its constructor) rather than
// as the bare constant, so the signal stays between providers and the
// completion-count loop that consumes it.
func IsInProgress(c Code) bool {
	return c == inProgress
}

// InProgress returns the internal in-progress sentinel, for providers to
// report and for the completion-count retry loop in pkg/amo to recognize.
func InProgress() Code {
	return inProgress
}

// Wrap annotates err with a status code and descriptive context rather than
// discarding the underlying provider error.
func Wrap(c Code, err error) error {
	if err == nil {
		return c
	}
	return fmt.Errorf("%s: %w", c, err)
}
