// Package label provides immutable Bazel target identifiers and target patterns.
//
// All types in this package are comparable values and can be used as map keys.
// Zero values are not valid labels - use the constructor functions (Parse,
// ParsePattern, New) to create instances.
//
// # Types
//
// The main types are:
//   - [Label]: A concrete target (e.g., "//foo/bar:baz", "@maven//:guava")
//   - [Pattern]: A target pattern that may be a wildcard (e.g., "//foo:all", "//foo/...")
//   - [TargetsSpec]: Included and excluded patterns requested by the user
//
// # Canonical Form
//
// Labels are always rendered with an explicit target name, so "//foo" is
// rendered as "//foo:foo". Equality and ordering follow the canonical string.
package label

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bazelbuild/buildtools/labels"
)

var (
	repoRegex    = regexp.MustCompile(`^[a-zA-Z0-9._~+-]*$`)
	packageRegex = regexp.MustCompile(`^[^:\s]*$`)
	nameRegex    = regexp.MustCompile(`^[^:\s]+$`)
)

// Label is a concrete, canonical Bazel target identifier.
type Label struct {
	repo      string
	canonical bool // spelled with "@@"
	pkg       string
	name      string
}

// New creates a validated Label in an apparent repository ("" for the main repository).
func New(repo, pkg, name string) (Label, error) {
	l := Label{repo: repo, pkg: pkg, name: name}
	if err := l.validate(); err != nil {
		return Label{}, &ParseError{Input: l.String(), Reason: err.Error()}
	}
	return l, nil
}

// Parse parses an absolute label such as "//foo:bar", "//foo" or "@repo//foo:bar".
// Wildcard patterns are rejected.
func Parse(s string) (Label, error) {
	p, err := ParsePattern(s)
	if err != nil {
		return Label{}, err
	}
	l, ok := p.Label()
	if !ok {
		return Label{}, &ParseError{Input: s, Reason: "wildcard pattern is not a concrete label"}
	}
	return l, nil
}

// MustParse parses a label or panics. Use only for constants/tests.
func MustParse(s string) Label {
	l, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return l
}

// Repo returns the repository name without "@" prefixes. Empty means the main repository.
func (l Label) Repo() string {
	return l.repo
}

// IsMainRepo reports whether the label belongs to the main repository.
func (l Label) IsMainRepo() bool {
	return l.repo == ""
}

// Package returns the package path.
func (l Label) Package() string {
	return l.pkg
}

// Name returns the target name.
func (l Label) Name() string {
	return l.name
}

// IsEmpty returns true if this is a zero-value Label.
func (l Label) IsEmpty() bool {
	return l == Label{}
}

// String returns the canonical label string.
func (l Label) String() string {
	return repoPrefix(l.repo, l.canonical) + "//" + l.pkg + ":" + l.name
}

// Compare orders labels by their canonical string.
func Compare(a, b Label) int {
	return strings.Compare(a.String(), b.String())
}

// Less reports whether a sorts before b.
func Less(a, b Label) bool {
	return Compare(a, b) < 0
}

func (l Label) validate() error {
	if !repoRegex.MatchString(l.repo) {
		return fmt.Errorf("invalid repository name %q", l.repo)
	}
	if err := validatePackage(l.pkg); err != nil {
		return err
	}
	if !nameRegex.MatchString(l.name) || strings.HasPrefix(l.name, "/") {
		return fmt.Errorf("invalid target name %q", l.name)
	}
	return nil
}

func validatePackage(pkg string) error {
	if !packageRegex.MatchString(pkg) ||
		strings.HasPrefix(pkg, "/") ||
		strings.HasSuffix(pkg, "/") ||
		strings.Contains(pkg, "//") {
		return fmt.Errorf("invalid package path %q", pkg)
	}
	return nil
}

func repoPrefix(repo string, canonical bool) string {
	switch {
	case canonical:
		return "@@" + repo
	case repo != "":
		return "@" + repo
	default:
		return ""
	}
}

// splitRepo separates a leading "@repo" or "@@repo" from the rest of a label string.
// A bare "@repo" is shorthand for "@repo//:repo".
func splitRepo(s string) (repo string, canonical bool, rest string, err error) {
	if !strings.HasPrefix(s, "@") {
		return "", false, s, nil
	}
	idx := strings.Index(s, "//")
	if idx == -1 {
		idx = len(s)
	}
	repo = s[1:idx]
	if strings.HasPrefix(repo, "@") {
		canonical = true
		repo = repo[1:]
	}
	if !repoRegex.MatchString(repo) {
		return "", false, "", fmt.Errorf("invalid repository name %q", repo)
	}
	if idx == len(s) {
		if repo == "" {
			return "", false, "", fmt.Errorf("missing repository name")
		}
		return repo, canonical, "//:" + repo, nil
	}
	return repo, canonical, s[idx:], nil
}

// parseConcrete decomposes "//pkg:name" or "//pkg" using the buildtools label parser.
func parseConcrete(rest string) (pkg, name string, err error) {
	parsed := labels.Parse(rest)
	if err := validatePackage(parsed.Package); err != nil {
		return "", "", err
	}
	if parsed.Target == "" || !nameRegex.MatchString(parsed.Target) || strings.HasPrefix(parsed.Target, "/") {
		return "", "", fmt.Errorf("invalid target name %q", parsed.Target)
	}
	return parsed.Package, parsed.Target, nil
}

// MarshalText implements encoding.TextMarshaler.
func (l Label) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Label) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
