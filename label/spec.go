package label

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for label handling.
var (
	// ErrInvalidLabel indicates a string could not be parsed as a label or pattern.
	ErrInvalidLabel = errors.New("invalid label")

	// ErrNothingToExclude indicates excluded patterns were given without any included ones.
	ErrNothingToExclude = errors.New("excluded targets specified without included targets")
)

// ParseError describes a label or pattern that failed to parse.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid label %q: %s", e.Input, e.Reason)
}

// Unwrap allows errors.Is(err, ErrInvalidLabel).
func (e *ParseError) Unwrap() error {
	return ErrInvalidLabel
}

// TargetsSpec is the declarative request: which patterns to include and exclude.
type TargetsSpec struct {
	Included []Pattern
	Excluded []Pattern
}

// ParseTargetsSpec parses a list of patterns where a leading "-" marks an exclusion.
func ParseTargetsSpec(values []string) (TargetsSpec, error) {
	var spec TargetsSpec
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		excluded := strings.HasPrefix(v, "-")
		p, err := ParsePattern(strings.TrimPrefix(v, "-"))
		if err != nil {
			return TargetsSpec{}, err
		}
		if excluded {
			spec.Excluded = append(spec.Excluded, p)
		} else {
			spec.Included = append(spec.Included, p)
		}
	}
	return spec, nil
}

// Validate reports ErrNothingToExclude when s excludes patterns but includes none.
func (s TargetsSpec) Validate() error {
	if len(s.Included) == 0 && len(s.Excluded) > 0 {
		return ErrNothingToExclude
	}
	return nil
}

// IsEmpty reports whether nothing is included.
func (s TargetsSpec) IsEmpty() bool {
	return len(s.Included) == 0
}

// Labels returns the concrete labels among the included patterns, in order.
func (s TargetsSpec) Labels() []Label {
	var out []Label
	for _, p := range s.Included {
		if l, ok := p.Label(); ok {
			out = append(out, l)
		}
	}
	return out
}

// IsExcluded reports whether any excluded pattern matches l.
func (s TargetsSpec) IsExcluded(l Label) bool {
	for _, p := range s.Excluded {
		if p.Matches(l) {
			return true
		}
	}
	return false
}

// Strings renders s back to Bazel command-line form, exclusions prefixed with "-".
func (s TargetsSpec) Strings() []string {
	out := make([]string, 0, len(s.Included)+len(s.Excluded))
	for _, p := range s.Included {
		out = append(out, p.String())
	}
	for _, p := range s.Excluded {
		out = append(out, "-"+p.String())
	}
	return out
}
