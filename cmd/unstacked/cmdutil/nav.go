package cmdutil

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vapourismo/unstacked/internal/model"
)

// printMove reports the focus reached after a navigation op: the logical
// position plus the commit it resolved to.
func printMove(cmd *cobra.Command, m *model.Model) {
	focus := m.Focus()
	if focus == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "(no focus)")
		return
	}
	if idx, ok := focus.Path.At(); ok {
		fmt.Fprintf(cmd.OutOrStdout(), "%s[%d] -> %s\n", focus.Path.Name, idx, focus.Id)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", focus.Path.Name, focus.Id)
	}
}

func gotoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "goto <name>",
		Short: "Move the focus to the last position of a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return navigate(cmd, func(ctx context.Context, m *model.Model) error {
				return m.GotoRule(ctx, args[0])
			})
		},
	}
}

func nextCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "next",
		Short: "Advance the focus to its next logical position",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return navigate(cmd, func(ctx context.Context, m *model.Model) error {
				return m.GotoNext(ctx)
			})
		},
	}
}

func prevCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "prev",
		Short: "Move the focus to its parent logical position",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return navigate(cmd, func(ctx context.Context, m *model.Model) error {
				return m.GotoParent(ctx)
			})
		},
	}
}

func navigate(cmd *cobra.Command, op func(context.Context, *model.Model) error) error {
	e, err := openEnv(cmd.Context(), repoRoot)
	if err != nil {
		return err
	}
	if err := op(cmd.Context(), e.model); err != nil {
		return err
	}
	printMove(cmd, e.model)
	return nil
}
