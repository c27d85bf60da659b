package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"mvpdauth/internal/mso"
)

func newProvidersCmd() *cobra.Command {
	var search string
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "List supported TV providers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			providers, err := mso.List(search)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME")
			for _, p := range providers {
				fmt.Fprintf(w, "%s\t%s\n", p.ID, p.DisplayName)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "filter by id or name")
	return cmd
}
