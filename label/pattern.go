package label

import (
	"fmt"
	"strings"
)

// Kind distinguishes concrete labels from wildcard patterns.
type Kind int

const (
	// Single is a concrete target, e.g. "//foo:bar".
	Single Kind = iota
	// AllInPackage matches every target in one package, e.g. "//foo:all".
	AllInPackage
	// Recursive matches every target in a package and all packages below it, e.g. "//foo/...".
	Recursive
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case Single:
		return "single"
	case AllInPackage:
		return "all-in-package"
	case Recursive:
		return "recursive"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// wildcardTargets are the target names that select more than one target.
var wildcardTargets = map[string]bool{
	"all":         true,
	"*":           true,
	"all-targets": true,
}

// Pattern is a Bazel target pattern. It is either a concrete Label or a wildcard.
type Pattern struct {
	repo      string
	canonical bool
	pkg       string
	name      string // target name, or the wildcard selector ("all", "*", "all-targets")
	kind      Kind
}

// ParsePattern parses an absolute target pattern.
//
// Supported forms:
//
//	//pkg:name  //pkg  //pkg:all  //pkg:*  //pkg:all-targets
//	//pkg/...  //pkg/...:all  //...
//
// Each may be prefixed with "@repo" or "@@repo".
func ParsePattern(s string) (Pattern, error) {
	repo, canonical, rest, err := splitRepo(s)
	if err != nil {
		return Pattern{}, &ParseError{Input: s, Reason: err.Error()}
	}
	if !strings.HasPrefix(rest, "//") {
		return Pattern{}, &ParseError{Input: s, Reason: "pattern must be absolute (start with //)"}
	}
	body := rest[2:]
	if body == "" || strings.HasPrefix(body, "/") {
		return Pattern{}, &ParseError{Input: s, Reason: "missing package or target"}
	}

	p := Pattern{repo: repo, canonical: canonical}
	pkgPart, target, hasTarget := strings.Cut(body, ":")

	if pkgPart == "..." || strings.HasSuffix(pkgPart, "/...") {
		if hasTarget && !wildcardTargets[target] {
			return Pattern{}, &ParseError{Input: s, Reason: fmt.Sprintf("unsupported recursive target selector %q", target)}
		}
		p.kind = Recursive
		p.pkg = strings.TrimSuffix(strings.TrimSuffix(pkgPart, "..."), "/")
		p.name = "all"
		if hasTarget {
			p.name = target
		}
	} else if hasTarget && wildcardTargets[target] {
		p.kind = AllInPackage
		p.pkg = pkgPart
		p.name = target
	} else {
		if err := validatePackage(pkgPart); err != nil {
			return Pattern{}, &ParseError{Input: s, Reason: err.Error()}
		}
		if hasTarget && (target == "" || !nameRegex.MatchString(target)) {
			return Pattern{}, &ParseError{Input: s, Reason: fmt.Sprintf("invalid target name %q", target)}
		}
		pkg, name, err := parseConcrete(rest)
		if err != nil {
			return Pattern{}, &ParseError{Input: s, Reason: err.Error()}
		}
		p.kind = Single
		p.pkg = pkg
		p.name = name
	}

	if err := validatePackage(p.pkg); err != nil {
		return Pattern{}, &ParseError{Input: s, Reason: err.Error()}
	}
	return p, nil
}

// MustParsePattern parses a pattern or panics. Use only for constants/tests.
func MustParsePattern(s string) Pattern {
	p, err := ParsePattern(s)
	if err != nil {
		panic(err)
	}
	return p
}

// FromLabel returns the single-target pattern for l.
func FromLabel(l Label) Pattern {
	return Pattern{repo: l.repo, canonical: l.canonical, pkg: l.pkg, name: l.name, kind: Single}
}

// ForPackage returns the "//pkg:all" pattern for a main-repository package.
func ForPackage(pkg string) Pattern {
	return Pattern{pkg: pkg, name: "all", kind: AllInPackage}
}

// InPackage returns the package wildcard for pkg that uses the same repository
// and target selector as p, so "//foo/...:*" yields "//pkg:*".
func (p Pattern) InPackage(pkg string) Pattern {
	name := p.name
	if !wildcardTargets[name] {
		name = "all"
	}
	return Pattern{repo: p.repo, canonical: p.canonical, pkg: pkg, name: name, kind: AllInPackage}
}

// RecursiveUnder returns the "//pkg/..." pattern for a main-repository package.
func RecursiveUnder(pkg string) Pattern {
	return Pattern{pkg: strings.Trim(pkg, "/"), name: "all", kind: Recursive}
}

// Kind returns the pattern kind.
func (p Pattern) Kind() Kind {
	return p.kind
}

// IsWildcard reports whether the pattern can match more than one target.
func (p Pattern) IsWildcard() bool {
	return p.kind != Single
}

// IsRecursive reports whether the pattern descends into subpackages.
func (p Pattern) IsRecursive() bool {
	return p.kind == Recursive
}

// IsMainRepo reports whether the pattern refers to the main repository.
func (p Pattern) IsMainRepo() bool {
	return p.repo == ""
}

// Repo returns the repository name without "@" prefixes.
func (p Pattern) Repo() string {
	return p.repo
}

// PackagePath returns the package the pattern is rooted at.
func (p Pattern) PackagePath() string {
	return p.pkg
}

// Label returns the concrete label for a Single pattern.
func (p Pattern) Label() (Label, bool) {
	if p.kind != Single {
		return Label{}, false
	}
	return Label{repo: p.repo, canonical: p.canonical, pkg: p.pkg, name: p.name}, true
}

// Matches reports whether the pattern selects the given label.
func (p Pattern) Matches(l Label) bool {
	if p.repo != l.repo || p.canonical != l.canonical {
		return false
	}
	switch p.kind {
	case Single:
		return p.pkg == l.pkg && p.name == l.name
	case AllInPackage:
		return p.pkg == l.pkg
	case Recursive:
		return p.pkg == "" || l.pkg == p.pkg || strings.HasPrefix(l.pkg, p.pkg+"/")
	default:
		return false
	}
}

// String returns the pattern in Bazel syntax.
func (p Pattern) String() string {
	prefix := repoPrefix(p.repo, p.canonical) + "//"
	switch p.kind {
	case Recursive:
		s := prefix + "..."
		if p.pkg != "" {
			s = prefix + p.pkg + "/..."
		}
		if p.name != "all" {
			s += ":" + p.name
		}
		return s
	default:
		return prefix + p.pkg + ":" + p.name
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Pattern) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Pattern) UnmarshalText(text []byte) error {
	parsed, err := ParsePattern(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
