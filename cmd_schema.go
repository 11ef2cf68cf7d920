package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"medextract/record"
)

func newSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON Schema every extracted record satisfies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), record.SchemaJSON())
			return nil
		},
	}
}
