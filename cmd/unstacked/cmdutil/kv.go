package cmdutil

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vapourismo/unstacked/internal/kvstore"
)

// kvCommand exposes the Persistent KV Store directly: a general-purpose
// structured store under refs/<namespace>/store, distinct from the
// model/cache/state refs that each carry their own fixed JSON shape. A
// path argument is a "/"-separated list of segments, e.g.
// "notes/release-plan".
func kvCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kv",
		Short: "Read or write the general-purpose KV Store",
	}
	cmd.AddCommand(kvGetCommand(), kvPutCommand())
	return cmd
}

func kvGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <path>",
		Short: "Print the JSON value stored at path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context(), repoRoot)
			if err != nil {
				return err
			}
			store, err := kvstore.Open(cmd.Context(), e.repo, "refs/"+e.cfg.Namespace+"/store")
			if err != nil {
				return err
			}
			var value json.RawMessage
			if err := store.Get(splitPath(args[0]), &value); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(value))
			return nil
		},
	}
}

func kvPutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "put <path> <json-value>",
		Short: "Store a JSON value at path and persist it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(cmd.Context(), repoRoot)
			if err != nil {
				return err
			}
			ref := "refs/" + e.cfg.Namespace + "/store"
			store, err := kvstore.Open(cmd.Context(), e.repo, ref)
			if err != nil {
				return err
			}
			var value json.RawMessage
			if err := json.Unmarshal([]byte(args[1]), &value); err != nil {
				return fmt.Errorf("cmdutil: kv put: %q is not valid JSON: %w", args[1], err)
			}
			if err := store.Put(splitPath(args[0]), value); err != nil {
				return err
			}
			if _, err := store.Write(cmd.Context()); err != nil {
				return err
			}
			return nil
		},
	}
}

func splitPath(s string) []string {
	return strings.Split(s, "/")
}
