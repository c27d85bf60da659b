package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"mvpdauth/internal/credentials"
	"mvpdauth/internal/persist"
	"mvpdauth/internal/tokencache"
)

func newCacheCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage cached provider tokens",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "clear REQUESTOR",
		Short: "Forget the cached tokens of a requestor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(g.cfg, credentials.NoPrompt{})
			if err != nil {
				return err
			}
			defer rt.Close()
			if err := rt.cache.Reset(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cleared %s cache for %s\n", tokencache.Namespace, args[0])
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list [PREFIX]",
		Short: "List requestors with cached tokens",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var prefix string
			if len(args) == 1 {
				prefix = args[0]
			}
			rt, err := openRuntime(g.cfg, credentials.NoPrompt{})
			if err != nil {
				return err
			}
			defer rt.Close()
			entries, err := persist.List(cmd.Context(), rt.backend, tokencache.Namespace, prefix)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "REQUESTOR\tUPDATED")
			for _, e := range entries {
				updated := "-"
				if !e.UpdatedAt.IsZero() {
					updated = e.UpdatedAt.Format(time.RFC3339)
				}
				fmt.Fprintf(w, "%s\t%s\n", e.Key, updated)
			}
			return w.Flush()
		},
	})
	return cmd
}
