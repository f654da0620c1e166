// Package status models the health of a Bazel invocation as an ordered lattice.
//
// Statuses merge to the worse of the two operands. FatalError is absorbing:
// once observed, callers stop issuing further work.
package status

import (
	"fmt"
	"strings"
)

// Status is the outcome of a build or query invocation.
type Status int

const (
	// Success means every requested target was processed.
	Success Status = iota
	// BuildError means some targets failed but partial results are usable.
	BuildError
	// FatalError means the invocation could not produce trustworthy results.
	FatalError
)

// Bazel exit codes relevant to query/build outcomes.
// See https://bazel.build/run/scripts#exit-codes
const (
	exitSuccess        = 0
	exitBuildFailure   = 1
	exitPartialFailure = 3
)

// Merge returns the worse of a and b.
func Merge(a, b Status) Status {
	if a > b {
		return a
	}
	return b
}

// MergeAll folds Merge over statuses, starting from Success.
func MergeAll(statuses ...Status) Status {
	result := Success
	for _, s := range statuses {
		result = Merge(result, s)
		if result == FatalError {
			break
		}
	}
	return result
}

// Merge returns the worse of s and other.
func (s Status) Merge(other Status) Status {
	return Merge(s, other)
}

// IsFatal reports whether s is FatalError.
func (s Status) IsFatal() bool {
	return s == FatalError
}

// String returns the canonical name of the status.
func (s Status) String() string {
	switch s {
	case Success:
		return "SUCCESS"
	case BuildError:
		return "BUILD_ERROR"
	case FatalError:
		return "FATAL_ERROR"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Parse converts a status name (case-insensitive) back to a Status.
func Parse(name string) (Status, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "SUCCESS":
		return Success, nil
	case "BUILD_ERROR", "PARTIAL":
		return BuildError, nil
	case "FATAL_ERROR":
		return FatalError, nil
	default:
		return FatalError, fmt.Errorf("unknown status %q", name)
	}
}

// FromExitCode maps a Bazel exit code to a Status.
// A failed build or a keep-going partial result still carries usable output.
func FromExitCode(code int) Status {
	switch code {
	case exitSuccess:
		return Success
	case exitBuildFailure, exitPartialFailure:
		return BuildError
	default:
		return FatalError
	}
}
