package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/assetcatalog/internal/shared/id"
)

func newMintCmd() *cobra.Command {
	var n int

	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Print fresh content ids",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if n < 1 {
				return fmt.Errorf("-n must be at least 1, got %d", n)
			}
			for i := 0; i < n; i++ {
				fmt.Fprintln(cmd.OutOrStdout(), id.NewContentID())
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&n, "count", "n", 1, "number of ids to print")
	return cmd
}
