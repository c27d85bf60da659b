package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAuthorizeCmd(g *globals) *cobra.Command {
	var requestor, resource, statement, provider string
	cmd := &cobra.Command{
		Use:   "authorize URL",
		Short: "Print a media token for a video page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := g.cfg
			if provider != "" {
				cfg.MSO = provider
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			if statement == "" {
				statement = cfg.SoftwareStatement
			}
			if resource == "" {
				resource = requestor
			}

			rt, err := openRuntime(cfg, terminalPrompter())
			if err != nil {
				return err
			}
			defer rt.Close()

			tok, err := rt.Authorize(cmd.Context(), args[0], resource, requestor, statement)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&requestor, "requestor", "", "broker requestor id of the site (required)")
	cmd.Flags().StringVar(&resource, "resource", "", "resource id or MRSS fragment (defaults to the requestor id)")
	cmd.Flags().StringVar(&statement, "software-statement", "", "site software statement (defaults to config)")
	cmd.Flags().StringVar(&provider, "mso", "", "TV provider id (overrides config)")
	_ = cmd.MarkFlagRequired("requestor")
	return cmd
}
