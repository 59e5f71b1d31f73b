package cmdutil

import (
	"fmt"

	"github.com/spf13/cobra"
)

// buildCommand wraps Model.Build/BuildAll: with a name it builds a
// single rule, without one it builds every rule in the book.
func buildCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "build [name]",
		Short: "Build a rule, or every rule if none is named",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context(), repoRoot)
			if err != nil {
				return err
			}
			if len(args) == 0 {
				results, err := e.model.BuildAll(cmd.Context())
				if err != nil {
					return err
				}
				for _, name := range e.model.Rules().Names() {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", name, results[name])
				}
				return nil
			}
			id, err := e.model.Build(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}
