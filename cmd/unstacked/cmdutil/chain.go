package cmdutil

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vapourismo/unstacked/internal/chain"
)

// chainCommand rebases each --ref, in order, onto --base by diff+apply
// rather than a cherry-pick, printing the resulting commit's Oid. It
// operates on raw refs directly rather than going through the Rule Graph
// or Model.
func chainCommand() *cobra.Command {
	var base string
	var refs []string
	cmd := &cobra.Command{
		Use:   "chain",
		Short: "Rebase a chain of refs onto a new base by diff and apply",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context(), repoRoot)
			if err != nil {
				return err
			}
			id, err := chain.Commit(cmd.Context(), e.repo, base, refs)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
	cmd.Flags().StringVarP(&base, "base", "b", "", "base ref the chain is rebased onto")
	cmd.Flags().StringArrayVarP(&refs, "ref", "r", nil, "ref to chain onto base, in order (repeatable)")
	cmd.MarkFlagRequired("base")
	cmd.MarkFlagRequired("ref")
	return cmd
}
