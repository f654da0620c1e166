package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/go-bzlshard/label"
	"github.com/albertocavalcante/go-bzlshard/packages"
)

// PackagesOptions holds flags for the packages command.
type PackagesOptions struct {
	Workspace          string
	ExcludeDirectories []string
	SymlinkScanDepth   int
}

// NewPackagesCommand creates the packages command.
func NewPackagesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PackagesOptions{}

	cmd := &cobra.Command{
		Use:   "packages <pattern>...",
		Short: "List the packages matched by recursive patterns",
		Long: `List the packages below each recursive pattern as "//pkg:all" wildcards.

Only recursive main-repository patterns such as //foo/... are expanded.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPackages(rootOpts, opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Workspace, "workspace", "w", ".", "workspace root")
	cmd.Flags().StringArrayVar(&opts.ExcludeDirectories, "exclude-directory", nil, "directory or glob to skip (repeatable)")
	cmd.Flags().IntVar(&opts.SymlinkScanDepth, "symlink-scan-depth", 2, "depth of the bazel-* symlink scan")

	return cmd
}

// packageListing is the structured output of the packages command.
type packageListing struct {
	Pattern  string   `json:"pattern" yaml:"pattern"`
	Packages []string `json:"packages" yaml:"packages"`
}

func runPackages(rootOpts *RootOptions, opts *PackagesOptions, args []string, cmd *cobra.Command) error {
	if err := rejectDot(rootOpts, "packages"); err != nil {
		return err
	}
	root, err := filepath.Abs(opts.Workspace)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid workspace", err)
	}

	patterns := make([]label.Pattern, 0, len(args))
	for _, arg := range args {
		p, err := label.ParsePattern(arg)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid target pattern", err)
		}
		patterns = append(patterns, p)
	}

	symlinks, err := packages.FindBazelSymlinks(root, opts.SymlinkScanDepth)
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot read workspace", err)
	}
	lister := &packages.Lister{
		Root:         root,
		ExcludedDirs: opts.ExcludeDirectories,
		Symlinks:     symlinks,
		Logger:       newLogger(rootOpts, cmd.ErrOrStderr()),
	}
	expanded, err := lister.ExpandPackageTargets(cmd.Context(), patterns)
	if err != nil {
		return WrapExitError(ExitCommandError, "package listing failed", err)
	}

	listings := make([]packageListing, 0, len(patterns))
	seen := make(map[label.Pattern]bool)
	for _, p := range patterns {
		pkgs, ok := expanded[p]
		if !ok || seen[p] {
			continue
		}
		seen[p] = true
		l := packageListing{Pattern: p.String(), Packages: make([]string, len(pkgs))}
		for i, pkg := range pkgs {
			l.Packages[i] = pkg.String()
		}
		listings = append(listings, l)
	}

	out := cmd.OutOrStdout()
	if done, err := writeStructured(out, rootOpts.Format, listings); done {
		return err
	}
	for _, l := range listings {
		fmt.Fprintf(out, "%s (%d packages)\n", l.Pattern, len(l.Packages))
		for _, pkg := range l.Packages {
			fmt.Fprintf(out, "  %s\n", pkg)
		}
	}
	return nil
}
