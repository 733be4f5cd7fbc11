package udt

import "errors"

// ErrTeardownNotTerminated is returned when endpoint teardown canceled a
// post and waited for it, but the provider did not report it terminated.
// This is a provider contract breach, not a caller error; it is returned
// rather than panicked, matching this codebase's error-returning style for
// "should never happen but surface it" conditions.
var ErrTeardownNotTerminated = errors.New("udt: post did not terminate after cancel")

// ErrProviderContractViolation marks a provider response this package
// treats as a contract violation rather than a recoverable status — e.g. a
// well-formed post rejected as an invalid parameter.
var ErrProviderContractViolation = errors.New("udt: provider rejected a well-formed post as invalid")
