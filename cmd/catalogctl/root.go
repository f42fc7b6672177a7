package main

import (
	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/assetcatalog/internal/domain/catalog"
)

// Flags shared by the commands that address a deployment.
type deployFlags struct {
	root     string
	platform string
}

func (f *deployFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.root, "root", "r", "deploy", "deployment root")
	cmd.Flags().StringVarP(&f.platform, "platform", "p", "linux", "target platform")
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "catalogctl",
		Short:         "Inspect, verify and pack content catalogs",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(
		newInspectCmd(),
		newPacknamesCmd(),
		newVerifyCmd(),
		newMintCmd(),
		newPackCmd(),
	)
	return root
}

// loadCatalog loads and validates the catalog at path.
func loadCatalog(path string) (*catalog.Catalog, error) {
	cat, err := catalog.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return cat, nil
}
