package cmdutil

import (
	"github.com/spf13/cobra"
)

// undoCommand/redoCommand expose the undo/redo list persisted under the
// state reference: Undo pushes the current focus commit onto the list,
// Redo restores the most recently pushed one.
func undoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "undo",
		Short: "Push the current focus commit onto the undo list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context(), repoRoot)
			if err != nil {
				return err
			}
			return e.model.Undo(cmd.Context())
		},
	}
}

func redoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "redo",
		Short: "Restore the most recently undone commit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context(), repoRoot)
			if err != nil {
				return err
			}
			if err := e.model.Redo(cmd.Context()); err != nil {
				return err
			}
			printMove(cmd, e.model)
			return nil
		},
	}
}
