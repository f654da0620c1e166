// Package firstphase builds a project snapshot from BUILD files alone.
//
// The snapshot is cheaper than querying Bazel and good enough to shard a
// project of known shape: every named rule in a matching package becomes a
// module. Macros are not expanded, so targets they generate are missed.
package firstphase

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/bazelbuild/buildtools/build"
	"golang.org/x/sync/errgroup"

	gobzlshard "github.com/albertocavalcante/go-bzlshard"
	"github.com/albertocavalcante/go-bzlshard/graph"
	"github.com/albertocavalcante/go-bzlshard/internal/buildutil"
	"github.com/albertocavalcante/go-bzlshard/label"
	"github.com/albertocavalcante/go-bzlshard/packages"
)

const manualTag = "manual"

// Scanner reads the BUILD files of a workspace.
type Scanner struct {
	// Lister discovers packages. Its Root is the workspace root.
	Lister *packages.Lister

	// AllowManualTargets keeps rules tagged "manual".
	AllowManualTargets bool

	// Parallelism bounds how many BUILD files are parsed at once. Zero means 1.
	Parallelism int

	// Logger receives diagnostics. Nil disables logging.
	Logger *slog.Logger
}

// Snapshot returns the rules selected by spec as first-phase modules.
func (s *Scanner) Snapshot(ctx context.Context, spec label.TargetsSpec) (*gobzlshard.FirstPhaseSnapshot, error) {
	infos, err := s.TargetInfos(ctx, spec)
	if err != nil {
		return nil, err
	}
	snapshot := &gobzlshard.FirstPhaseSnapshot{Modules: make([]label.Label, 0, len(infos))}
	for _, info := range infos {
		snapshot.Modules = append(snapshot.Modules, info.ID)
	}
	return snapshot, nil
}

// TargetInfos parses the packages selected by spec and returns one node per
// rule, ordered by label. Dependencies are resolved against the rule's package.
//
// Rules in packages whose BUILD file does not parse are skipped with a warning.
func (s *Scanner) TargetInfos(ctx context.Context, spec label.TargetsSpec) ([]*graph.TargetInfo, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	pkgs, err := s.packagesFor(ctx, spec.Included)
	if err != nil {
		return nil, err
	}

	var (
		mu    sync.Mutex
		infos []*graph.TargetInfo
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(s.Parallelism, 1))
	for _, pkg := range pkgs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			path := packages.BuildFilePath(s.Lister.Root, pkg)
			if path == "" {
				return nil
			}
			parsed, err := ParseBuildFile(path, pkg)
			if err != nil {
				s.log().Warn("skipping unparsable BUILD file", "path", path, "error", err)
				return nil
			}
			mu.Lock()
			infos = append(infos, parsed...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	selected := infos[:0]
	for _, info := range infos {
		if !s.AllowManualTargets && buildutil.HasTag(info.Tags, manualTag) && !isExplicit(spec, info.ID) {
			continue
		}
		if !matches(spec.Included, info.ID) || spec.IsExcluded(info.ID) {
			continue
		}
		selected = append(selected, info)
	}
	sort.Slice(selected, func(i, j int) bool { return label.Less(selected[i].ID, selected[j].ID) })
	s.log().Debug("scanned BUILD files", "packages", len(pkgs), "targets", len(selected))
	return selected, nil
}

// packagesFor returns the distinct main-repository packages the patterns touch.
func (s *Scanner) packagesFor(ctx context.Context, patterns []label.Pattern) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	add := func(pkg string) {
		if !seen[pkg] {
			seen[pkg] = true
			out = append(out, pkg)
		}
	}
	for _, p := range patterns {
		if !p.IsMainRepo() {
			s.log().Debug("ignoring external pattern", "pattern", p.String())
			continue
		}
		if !p.IsRecursive() {
			add(p.PackagePath())
			continue
		}
		pkgs, err := s.Lister.ListPackages(ctx, p.PackagePath())
		if err != nil {
			return nil, fmt.Errorf("list packages under %s: %w", p, err)
		}
		for _, pkg := range pkgs {
			add(pkg)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Scanner) log() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.New(slog.DiscardHandler)
}

// ParseBuildFile parses the BUILD file at path, which belongs to package pkg.
func ParseBuildFile(path, pkg string) ([]*graph.TargetInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseBuild(path, data, pkg)
}

// ParseBuild parses BUILD file content belonging to package pkg.
func ParseBuild(filename string, data []byte, pkg string) ([]*graph.TargetInfo, error) {
	f, err := build.ParseBuild(filename, data)
	if err != nil {
		return nil, err
	}

	var infos []*graph.TargetInfo
	for _, rule := range buildutil.Rules(f) {
		id, err := label.New("", pkg, buildutil.String(rule, "name"))
		if err != nil {
			return nil, err
		}
		info := &graph.TargetInfo{
			ID:      id,
			Kind:    buildutil.FuncName(rule),
			Sources: buildutil.StringList(rule, "srcs"),
			Tags:    buildutil.StringList(rule, "tags"),
		}
		for _, attr := range []string{"deps", "runtime_deps", "exports"} {
			for _, dep := range buildutil.StringList(rule, attr) {
				l, err := resolve(dep, pkg)
				if err != nil {
					return nil, fmt.Errorf("%s: %s: %w", id, attr, err)
				}
				info.Dependencies = append(info.Dependencies, l)
			}
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// resolve turns a dependency as written in a BUILD file into an absolute label.
func resolve(dep, pkg string) (label.Label, error) {
	if strings.HasPrefix(dep, "//") || strings.HasPrefix(dep, "@") {
		return label.Parse(dep)
	}
	return label.New("", pkg, strings.TrimPrefix(dep, ":"))
}

func matches(patterns []label.Pattern, l label.Label) bool {
	for _, p := range patterns {
		if p.Matches(l) {
			return true
		}
	}
	return false
}

func isExplicit(spec label.TargetsSpec, l label.Label) bool {
	for _, p := range spec.Included {
		if !p.IsWildcard() && p.Matches(l) {
			return true
		}
	}
	return false
}
