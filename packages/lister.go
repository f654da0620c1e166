// Package packages discovers Bazel packages on disk.
//
// A recursive pattern such as "//foo/..." is expanded into one "//dir:all"
// pattern per package below foo, so that the query backend only ever sees
// package-sized wildcards. Bazel's convenience symlinks (bazel-bin, bazel-out,
// ...) are never followed since they lead into the output tree.
package packages

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/albertocavalcante/go-bzlshard/label"
)

// BuildFileNames are the file names that mark a directory as a package.
var BuildFileNames = []string{"BUILD.bazel", "BUILD"}

// Lister expands recursive target patterns by walking the workspace.
type Lister struct {
	// Root is the workspace root directory.
	Root string

	// ExcludedDirs are workspace-relative directories to skip. Entries containing
	// glob metacharacters are matched with doublestar syntax (e.g. "**/node_modules").
	ExcludedDirs []string

	// Symlinks are workspace-relative paths of Bazel-managed symlinks to skip.
	// See FindBazelSymlinks. When nil, symlinks named bazel-* directly under
	// Root are skipped.
	Symlinks map[string]struct{}

	// Logger receives traversal diagnostics. Nil disables logging.
	Logger *slog.Logger
}

// ExpandPackageTargets expands every recursive main-repository pattern into the
// "//dir:all" patterns of the packages beneath it. The pattern's target
// selector is kept, so "//foo/...:*" becomes "//dir:*".
//
// Patterns that are not recursive, or that point into an external repository,
// are not keys of the returned map. A recursive pattern whose directory does
// not exist maps to an empty slice.
func (l *Lister) ExpandPackageTargets(ctx context.Context, patterns []label.Pattern) (map[label.Pattern][]label.Pattern, error) {
	result := make(map[label.Pattern][]label.Pattern)
	for _, p := range patterns {
		if !p.IsRecursive() || !p.IsMainRepo() {
			continue
		}
		if _, done := result[p]; done {
			continue
		}
		pkgs, err := l.ListPackages(ctx, p.PackagePath())
		if err != nil {
			return nil, err
		}
		expanded := make([]label.Pattern, len(pkgs))
		for i, pkg := range pkgs {
			expanded[i] = p.InPackage(pkg)
		}
		l.log().Debug("expanded recursive pattern", "pattern", p.String(), "packages", len(expanded))
		result[p] = expanded
	}
	return result, nil
}

// ListPackages returns the sorted package paths at and below base.
// The walk uses an explicit queue so arbitrarily deep trees are safe.
func (l *Lister) ListPackages(ctx context.Context, base string) ([]string, error) {
	base = strings.Trim(base, "/")
	start := filepath.Join(l.Root, filepath.FromSlash(base))
	info, err := os.Stat(start)
	if err != nil || !info.IsDir() {
		l.log().Debug("skipping missing package directory", "package", base)
		return nil, nil
	}

	// Real directories are walked before symlinked ones, so a symlink never
	// claims a directory that is also reachable without it.
	visited := make(map[string]bool)
	var pkgs []string
	queue := []string{base}
	var linked []string
	for len(queue) > 0 || len(linked) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var rel string
		if len(queue) > 0 {
			rel, queue = queue[0], queue[1:]
		} else {
			rel, linked = linked[0], linked[1:]
		}

		if l.isSkipped(rel) {
			continue
		}
		dir := filepath.Join(l.Root, filepath.FromSlash(rel))
		real, err := filepath.EvalSymlinks(dir)
		if err != nil {
			l.log().Warn("cannot resolve directory", "dir", dir, "error", err)
			continue
		}
		if visited[real] {
			continue
		}
		visited[real] = true

		entries, err := os.ReadDir(dir)
		if err != nil {
			l.log().Warn("cannot read directory", "dir", dir, "error", err)
			continue
		}

		if hasBuildFile(dir, entries) {
			pkgs = append(pkgs, rel)
		}
		for _, entry := range entries {
			child := path.Join(rel, entry.Name())
			switch {
			case entry.IsDir():
				queue = append(queue, child)
			case l.isDirSymlink(rel, dir, entry):
				linked = append(linked, child)
			}
		}
	}

	sort.Strings(pkgs)
	return pkgs, nil
}

// isDirSymlink reports whether entry is a symlink to a directory that may be
// followed. Without a Symlinks set, top-level bazel-* links are never followed.
func (l *Lister) isDirSymlink(rel, dir string, entry fs.DirEntry) bool {
	if entry.Type()&fs.ModeSymlink == 0 {
		return false
	}
	if l.Symlinks == nil && rel == "" && strings.HasPrefix(entry.Name(), "bazel-") {
		return false
	}
	info, err := os.Stat(filepath.Join(dir, entry.Name()))
	return err == nil && info.IsDir()
}

// isSkipped reports whether a workspace-relative directory is excluded.
func (l *Lister) isSkipped(rel string) bool {
	if _, ok := l.Symlinks[rel]; ok {
		return true
	}
	for _, excluded := range l.ExcludedDirs {
		excluded = strings.Trim(filepath.ToSlash(excluded), "/")
		if excluded == rel {
			return true
		}
		if strings.ContainsAny(excluded, "*?[{") {
			if ok, err := doublestar.Match(excluded, rel); err == nil && ok {
				return true
			}
		}
	}
	return false
}

func (l *Lister) log() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.New(slog.DiscardHandler)
}

func hasBuildFile(dir string, entries []fs.DirEntry) bool {
	for _, entry := range entries {
		for _, name := range BuildFileNames {
			if entry.Name() != name {
				continue
			}
			if entry.Type().IsRegular() {
				return true
			}
			// A symlinked BUILD file still marks a package.
			if info, err := os.Stat(filepath.Join(dir, name)); err == nil && info.Mode().IsRegular() {
				return true
			}
		}
	}
	return false
}

// BuildFilePath returns the path of the BUILD file for a package directory, or
// "" if the directory is not a package.
func BuildFilePath(root, pkg string) string {
	dir := filepath.Join(root, filepath.FromSlash(pkg))
	for _, name := range BuildFileNames {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			return p
		}
	}
	return ""
}

// FindBazelSymlinks returns the workspace-relative paths of Bazel convenience
// symlinks at most maxDepth directory levels below root.
func FindBazelSymlinks(root string, maxDepth int) (map[string]struct{}, error) {
	symlinks := make(map[string]struct{})
	for _, name := range []string{"bazel-bin", "bazel-out", "bazel-testlogs", "bazel-genfiles", "bazel-" + filepath.Base(root)} {
		symlinks[name] = struct{}{}
	}

	type item struct {
		rel   string
		depth int
	}
	queue := []item{{rel: "", depth: 0}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		entries, err := os.ReadDir(filepath.Join(root, filepath.FromSlash(cur.rel)))
		if err != nil {
			if cur.rel == "" {
				return nil, fmt.Errorf("scan workspace for bazel symlinks: %w", err)
			}
			continue
		}
		for _, entry := range entries {
			child := path.Join(cur.rel, entry.Name())
			if entry.Type()&fs.ModeSymlink != 0 {
				if strings.HasPrefix(entry.Name(), "bazel-") {
					symlinks[child] = struct{}{}
				}
				continue
			}
			if entry.IsDir() && cur.depth+1 < maxDepth {
				queue = append(queue, item{rel: child, depth: cur.depth + 1})
			}
		}
	}
	return symlinks, nil
}
