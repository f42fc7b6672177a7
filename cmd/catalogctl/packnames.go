package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newPacknamesCmd() *cobra.Command {
	var flags deployFlags

	cmd := &cobra.Command{
		Use:   "packnames <catalog>",
		Short: "Print the package file every record is deployed in",
		Long: `Print, for every record, the package file it is deployed in.

Examples:
  catalogctl packnames catalog/ --platform linux
  catalogctl packnames catalog.yaml -r build/deploy -p switch`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadCatalog(args[0])
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DESCRIPTOR\tCONTENT ID\tPATH\tPACKAGE")
			for _, d := range cat.Descriptors {
				for _, rec := range d.Records {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Name, rec.ID, rec.Path, d.PackagePath(flags.root, flags.platform, rec))
				}
			}
			return tw.Flush()
		},
	}
	flags.register(cmd)
	return cmd
}
