package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	gobzlshard "github.com/albertocavalcante/go-bzlshard"
)

// NewDiffCommand creates the diff command.
func NewDiffCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "diff <old> <new>",
		Short: "Compare two shard results",
		Long: `Compare two results written by "bzlshard shard --format json" or
"--format yaml" and report added, removed and moved targets.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(rootOpts, args[0], args[1], cmd)
		},
	}
}

func runDiff(rootOpts *RootOptions, oldPath, newPath string, cmd *cobra.Command) error {
	if err := rejectDot(rootOpts, "diff"); err != nil {
		return err
	}
	oldResult, err := readShardResult(oldPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot read "+oldPath, err)
	}
	newResult, err := readShardResult(newPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot read "+newPath, err)
	}

	diff := gobzlshard.DiffShards(&oldResult.Targets, &newResult.Targets)

	out := cmd.OutOrStdout()
	if done, err := writeStructured(out, rootOpts.Format, diff); done {
		return err
	}
	writeDiffText(out, diff)
	return nil
}

// readShardResult decodes a JSON or YAML shard result.
func readShardResult(path string) (*gobzlshard.ShardResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var result gobzlshard.ShardResult
	if err := yaml.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func writeDiffText(w io.Writer, diff *gobzlshard.ShardDiff) {
	if diff.IsEmpty() {
		fmt.Fprintln(w, "no changes")
		return
	}
	fmt.Fprintf(w, "%d change(s)\n", diff.TotalChanges())
	for _, l := range diff.Added {
		fmt.Fprintf(w, "+ %s\n", l)
	}
	for _, l := range diff.Removed {
		fmt.Fprintf(w, "- %s\n", l)
	}
	for _, m := range diff.Moved {
		fmt.Fprintf(w, "~ %s (batch %d -> %d)\n", m.Target, m.OldBatch+1, m.NewBatch+1)
	}
}
