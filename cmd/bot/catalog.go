package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"homeworkbot/internal/homework"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Print the recognized review statuses",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cat := homework.DefaultCatalog()
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		for _, code := range cat.Codes() {
			text, err := cat.Render(code)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s\t%s\n", code, text)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(catalogCmd)
}
