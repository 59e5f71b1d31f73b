package cmdutil

import (
	"github.com/spf13/cobra"
)

// commitCommand wraps Model.CommitOntoFocus: captures the
// index or working directory as a new commit parented on the current
// focus, inserts it into the focused series, and advances focus onto it.
func commitCommand() *cobra.Command {
	var message string
	var useIndex bool
	var sign bool
	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Commit the index or working directory onto the focus",
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
			if err := e.model.CommitOntoFocus(cmd.Context(), message, useIndex, signer); err != nil {
				return err
			}
			printMove(cmd, e.model)
			return nil
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	cmd.Flags().BoolVar(&useIndex, "index", false, "commit the staged index instead of the full working directory")
	cmd.Flags().BoolVar(&sign, "sign", false, "sign the resulting commit")
	cmd.MarkFlagRequired("message")
	return cmd
}
