package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mvpdauth/internal/models"
)

func newResourceCmd() *cobra.Command {
	var provider, title, guid, rating string
	cmd := &cobra.Command{
		Use:   "resource",
		Short: "Build an MRSS resource fragment for a single video",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := models.NewResource(provider, title, guid, rating)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "", "channel title, usually the requestor id")
	cmd.Flags().StringVar(&title, "title", "", "video title")
	cmd.Flags().StringVar(&guid, "guid", "", "video guid")
	cmd.Flags().StringVar(&rating, "rating", "", "v-chip rating, e.g. TV-14")
	for _, f := range []string{"provider", "title", "guid"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}
