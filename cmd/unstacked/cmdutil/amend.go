package cmdutil

import (
	"github.com/spf13/cobra"
)

// amendCommand wraps Model.AmendFocus: replaces the tree of the focus
// commit in place within its series.
func amendCommand() *cobra.Command {
	var useIndex bool
	var sign bool
	cmd := &cobra.Command{
		Use:   "amend",
		Short: "Replace the tree of the focus commit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context(), repoRoot)
			if err != nil {
				return err
			}
			signer, err := e.signer(sign)
			if err != nil {
				return err
			}
			if err := e.model.AmendFocus(cmd.Context(), useIndex, signer); err != nil {
				return err
			}
			printMove(cmd, e.model)
			return nil
		},
	}
	cmd.Flags().BoolVar(&useIndex, "index", false, "amend from the staged index instead of the full working directory")
	cmd.Flags().BoolVar(&sign, "sign", false, "sign the resulting commit")
	return cmd
}
