package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVersionCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print connector metadata",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newRegistry().New(opts.connector, nil, nil)
			if err != nil {
				return err
			}
			meta := c.Load()
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n%s\nAuthor: %s\n", meta.Name, meta.Version, meta.Description, meta.Author)
			return nil
		},
	}
}
