package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	gobzlshard "github.com/albertocavalcante/go-bzlshard"
	"github.com/albertocavalcante/go-bzlshard/firstphase"
	"github.com/albertocavalcante/go-bzlshard/graph"
	"github.com/albertocavalcante/go-bzlshard/label"
	"github.com/albertocavalcante/go-bzlshard/packages"
)

// DepsOptions holds flags for the deps command.
type DepsOptions struct {
	GraphFile      string
	Workspace      string
	Roots          []string
	Target         string
	Path           string
	Depth          int
	ExpandExternal bool
}

// NewDepsCommand creates the deps command.
func NewDepsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DepsOptions{}

	cmd := &cobra.Command{
		Use:   "deps [patterns...]",
		Short: "Answer dependency closure queries over a target graph",
		Long: `Answer dependency closure queries over a target graph.

The graph is read from --graph (YAML or JSON), or built from the BUILD files
of the packages matched by the patterns (default //...).

With --target, prints the target's dependencies excluding direct root
targets. With --path as well, prints the shortest dependency chain from
--target to --path. Otherwise prints every target within --depth of the
roots and the frontier just beyond it.

--format dot renders the whole graph.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeps(rootOpts, opts, args, cmd)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.GraphFile, "graph", "g", "", "target graph file")
	f.StringVarP(&opts.Workspace, "workspace", "w", ".", "workspace root, used without --graph")
	f.StringArrayVarP(&opts.Roots, "root", "r", nil, "root target (repeatable)")
	f.StringVarP(&opts.Target, "target", "t", "", "target whose closure is printed")
	f.StringVar(&opts.Path, "path", "", "print the dependency chain from --target to this target")
	f.IntVarP(&opts.Depth, "depth", "d", -1, "depth bound (negative means unlimited)")
	f.BoolVar(&opts.ExpandExternal, "expand-external", false, "always fully expand targets in external repositories")

	return cmd
}

// closureOutput is the structured output of closure mode.
type closureOutput struct {
	Target       label.Label   `json:"target" yaml:"target"`
	Dependencies []label.Label `json:"dependencies" yaml:"dependencies"`
}

// pathOutput is the structured output of path mode.
type pathOutput struct {
	From label.Label   `json:"from" yaml:"from"`
	To   label.Label   `json:"to" yaml:"to"`
	Path []label.Label `json:"path" yaml:"path"`
}

// depthOutput is the structured output of depth mode.
type depthOutput struct {
	Depth              int           `json:"depth" yaml:"depth"`
	Roots              []label.Label `json:"roots" yaml:"roots"`
	Targets            []label.Label `json:"targets" yaml:"targets"`
	DirectDependencies []label.Label `json:"direct_dependencies" yaml:"direct_dependencies"`
}

func runDeps(rootOpts *RootOptions, opts *DepsOptions, args []string, cmd *cobra.Command) error {
	roots, err := parseLabels(opts.Roots)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid root", err)
	}
	g, err := loadGraph(rootOpts, opts, args, roots, cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if rootOpts.Format == "dot" {
		_, err := io.WriteString(out, g.ToDOT())
		return err
	}

	switch {
	case opts.Target != "" && opts.Path != "":
		return runPath(rootOpts, opts, g, out)
	case opts.Target != "":
		return runClosure(rootOpts, opts, g, out)
	case opts.Path != "":
		return NewExitError(ExitCommandError, "--path requires --target")
	default:
		return runDepth(rootOpts, opts, g, roots, out)
	}
}

func loadGraph(rootOpts *RootOptions, opts *DepsOptions, args []string, roots []label.Label, cmd *cobra.Command) (*graph.Graph, error) {
	if opts.GraphFile != "" {
		f, err := os.Open(opts.GraphFile)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "cannot open graph", err)
		}
		defer f.Close()
		g, err := graph.Load(f, roots...)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "cannot load graph", err)
		}
		return g, nil
	}

	if len(args) == 0 {
		args = []string{"//..."}
	}
	spec, err := label.ParseTargetsSpec(args)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid target pattern", err)
	}
	root, err := filepath.Abs(opts.Workspace)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid workspace", err)
	}
	symlinks, err := packages.FindBazelSymlinks(root, gobzlshard.DefaultSymlinkScanMaxDepth)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "cannot read workspace", err)
	}
	logger := newLogger(rootOpts, cmd.ErrOrStderr())
	scanner := &firstphase.Scanner{
		Lister:             &packages.Lister{Root: root, Symlinks: symlinks, Logger: logger},
		AllowManualTargets: true,
		Logger:             logger,
	}
	infos, err := scanner.TargetInfos(cmd.Context(), spec)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "cannot read BUILD files", err)
	}
	return graph.New(roots, infos), nil
}

func runClosure(rootOpts *RootOptions, opts *DepsOptions, g *graph.Graph, out io.Writer) error {
	target, err := label.Parse(opts.Target)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid target", err)
	}
	if !g.Contains(target) {
		return NewExitError(ExitCommandError, fmt.Sprintf("target %s is not in the graph", target))
	}
	result := closureOutput{
		Target:       target,
		Dependencies: infoIDs(g.TransitiveDependenciesWithoutRootTargets(target)),
	}
	if done, err := writeStructured(out, rootOpts.Format, result); done {
		return err
	}
	writeLabelSection(out, fmt.Sprintf("dependencies of %s", target), result.Dependencies)
	return nil
}

func runPath(rootOpts *RootOptions, opts *DepsOptions, g *graph.Graph, out io.Writer) error {
	labels, err := parseLabels([]string{opts.Target, opts.Path})
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid target", err)
	}
	path := g.Path(labels[0], labels[1])
	if path == nil {
		return NewExitError(ExitFailure, fmt.Sprintf("%s does not depend on %s", labels[0], labels[1]))
	}
	result := pathOutput{From: labels[0], To: labels[1], Path: path}
	if done, err := writeStructured(out, rootOpts.Format, result); done {
		return err
	}
	for i, l := range path {
		fmt.Fprintf(out, "%*s%s\n", 2*i, "", l)
	}
	return nil
}

func runDepth(rootOpts *RootOptions, opts *DepsOptions, g *graph.Graph, roots []label.Label, out io.Writer) error {
	if len(roots) == 0 {
		roots = g.RootTargets()
	}
	if len(roots) == 0 {
		return NewExitError(ExitCommandError, "no root targets: pass --root or list roots in the graph file")
	}
	var alwaysExpand func(label.Label) bool
	if opts.ExpandExternal {
		alwaysExpand = graph.IsExternal
	}

	res := g.AllTargetsAtDepth(opts.Depth, roots, alwaysExpand)
	result := depthOutput{
		Depth:              opts.Depth,
		Roots:              roots,
		Targets:            res.IDs(),
		DirectDependencies: res.DirectDependencyIDs(),
	}
	if done, err := writeStructured(out, rootOpts.Format, result); done {
		return err
	}
	writeLabelSection(out, "targets", result.Targets)
	fmt.Fprintln(out)
	writeLabelSection(out, "direct dependencies", result.DirectDependencies)
	return nil
}

func writeLabelSection(w io.Writer, title string, labels []label.Label) {
	fmt.Fprintf(w, "%s (%d):\n", title, len(labels))
	for _, l := range labels {
		fmt.Fprintf(w, "  %s\n", l)
	}
}

func parseLabels(values []string) ([]label.Label, error) {
	out := make([]label.Label, 0, len(values))
	for _, v := range values {
		l, err := label.Parse(v)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, nil
}

func infoIDs(infos []*graph.TargetInfo) []label.Label {
	out := make([]label.Label, len(infos))
	for i, info := range infos {
		out[i] = info.ID
	}
	return out
}
