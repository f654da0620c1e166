// Package query is the boundary to the `bazel query` subprocess.
//
// A [Runner] executes a query expression and returns raw output plus the exit
// code. Interpreting the exit code as a [status.Status] and parsing labels out
// of stdout are separate steps so fakes only need to supply bytes.
package query

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/albertocavalcante/go-bzlshard/label"
	"github.com/albertocavalcante/go-bzlshard/status"
)

// DefaultFlags are passed to every target-resolution query.
var DefaultFlags = []string{"--output=label", "--keep_going"}

// manualTagRegex matches "manual" as a complete element of a tags list.
const manualTagRegex = `[\[ ]manual[,\]]`

// Runner executes Bazel query expressions.
type Runner interface {
	// Query runs `bazel query <expression> <flags...>`.
	// A non-nil error means the process could not run to completion at all
	// (failed to start, context cancelled); a non-zero exit code is not an error.
	Query(ctx context.Context, expression string, flags ...string) (Result, error)
}

// Result is the raw outcome of a query invocation.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Status maps the exit code to a build status.
func (r Result) Status() status.Status {
	return status.FromExitCode(r.ExitCode)
}

// Expression builds a query expression selecting includes minus excludes.
// When excludeManual is set, targets tagged "manual" are removed from the result.
func Expression(includes, excludes []label.Pattern, excludeManual bool) string {
	if len(includes) == 0 {
		return ""
	}
	expr := "(" + join(includes) + ")"
	if len(excludes) > 0 {
		expr += " - (" + join(excludes) + ")"
	}
	if excludeManual {
		expr = fmt.Sprintf(`let t = %s in $t except attr("tags", "%s", $t)`, expr, manualTagRegex)
	}
	return expr
}

func join(patterns []label.Pattern) string {
	parts := make([]string, len(patterns))
	for i, p := range patterns {
		parts[i] = quote(p.String())
	}
	return strings.Join(parts, " + ")
}

// quote wraps a pattern in double quotes when it contains characters the
// query lexer would otherwise treat as operators.
func quote(s string) string {
	if strings.ContainsAny(s, " *+()=^") {
		return `"` + s + `"`
	}
	return s
}

// ParseLabels extracts labels from newline-delimited `--output=label` output.
// Blank lines are skipped. Lines that do not parse are returned separately.
// Lines may be of any length.
func ParseLabels(stdout []byte) (labels []label.Label, invalid []string) {
	for raw := range bytes.Lines(stdout) {
		line := string(bytes.TrimSpace(raw))
		if line == "" {
			continue
		}
		l, err := label.Parse(line)
		if err != nil {
			invalid = append(invalid, line)
			continue
		}
		labels = append(labels, l)
	}
	return labels, invalid
}
