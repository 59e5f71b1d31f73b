package cmdutil

import (
	"github.com/spf13/cobra"
)

var repoRoot string

// Root returns the unstacked command tree: rule, kv, build, chain, goto,
// next, prev, commit, amend, undo, redo. Each is a direct call into one
// Model method, except kv and chain which bypass the Model entirely.
func Root() *cobra.Command {
	root := &cobra.Command{
		Use:           "unstacked",
		Short:         "Stacked-diff workflow engine over a git repository",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&repoRoot, "repo", "", "repository root (default: current directory)")

	root.AddCommand(
		ruleCommand(),
		kvCommand(),
		buildCommand(),
		chainCommand(),
		gotoCommand(),
		nextCommand(),
		prevCommand(),
		commitCommand(),
		amendCommand(),
		undoCommand(),
		redoCommand(),
	)
	return root
}
