package errorutil

import "errors"

// ErrIdentityResolution is a base error type to use for events whose callable
// identity can't be determined. It is a defect in instrumentation coverage and
// terminates the profiling session.
var ErrIdentityResolution = errors.New("identity resolution error")

// ErrInvalidConfig represents configuration values that failed validation.
var ErrInvalidConfig = errors.New("invalid configuration")
