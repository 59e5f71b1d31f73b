package cmdutil

import (
	"fmt"

	"github.com/spf13/cobra"
)

// ruleCommand groups "rule series"/"rule anchor", the two pure Rule Book
// mutations the Model exposes, and "rule list".
func ruleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rule",
		Short: "Create or inspect rules",
	}
	cmd.AddCommand(ruleSeriesCommand(), ruleAnchorCommand(), ruleListCommand())
	return cmd
}

func ruleSeriesCommand() *cobra.Command {
	var parent string
	cmd := &cobra.Command{
		Use:   "series <name>",
		Short: "Create a series rule with no patches",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context(), repoRoot)
			if err != nil {
				return err
			}
			if err := e.model.NewSeries(cmd.Context(), args[0], parent); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created series %q (parent %q)\n", args[0], parent)
			return nil
		},
	}
	cmd.Flags().StringVar(&parent, "parent", "", "name of the parent rule")
	cmd.MarkFlagRequired("parent")
	return cmd
}

func ruleAnchorCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "anchor <name> <commit>",
		Short: "Create an anchor rule fixed at a commit",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context(), repoRoot)
			if err != nil {
				return err
			}
			c, err := e.repo.FindCommit(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			if err := e.model.NewAnchor(cmd.Context(), args[0], c.Oid); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created anchor %q at %s\n", args[0], c.Oid)
			return nil
		},
	}
	return cmd
}

func ruleListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List rule names in insertion order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context(), repoRoot)
			if err != nil {
				return err
			}
			for _, name := range e.model.Rules().Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}
