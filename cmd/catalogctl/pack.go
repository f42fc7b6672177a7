package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/assetcatalog/internal/domain/catalog"
	"github.com/GriffinCanCode/assetcatalog/internal/host/packaged"
)

// packCatalog writes one .package per packed name from the loose sources
// under source. Records whose source is missing fail the run unless
// skipMissing is set. It returns the written package paths.
func packCatalog(cat *catalog.Catalog, source, root, platform string, skipMissing bool) ([]string, []string, error) {
	var written, skipped []string

	for _, d := range cat.Descriptors {
		if err := d.RefreshLookupTable(); err != nil {
			// Only the first occurrence of a repeated id is packed
			skipped = append(skipped, duplicateIDs(err)...)
		}

		groups := make(map[string][]packaged.Entry)
		seen := make(map[string]bool)
		for _, rec := range d.Records {
			if seen[rec.ID.String()] {
				continue
			}
			seen[rec.ID.String()] = true

			data, err := os.ReadFile(filepath.Join(source, filepath.FromSlash(rec.Path)))
			if err != nil {
				if skipMissing {
					skipped = append(skipped, rec.ID.String())
					continue
				}
				return written, skipped, fmt.Errorf("read source of %s: %w", rec.ID, err)
			}
			packed := d.PackedName(rec)
			groups[packed] = append(groups[packed], packaged.Entry{Record: rec, Data: data})
		}

		for _, packed := range d.PackageNames() {
			path := packaged.PackagePath(root, platform, packed)
			if err := packaged.WriteFile(path, groups[packed]); err != nil {
				return written, skipped, fmt.Errorf("write %s: %w", path, err)
			}
			written = append(written, path)
		}
	}
	return written, skipped, nil
}

func newPackCmd() *cobra.Command {
	var (
		flags       deployFlags
		source      string
		skipMissing bool
	)

	cmd := &cobra.Command{
		Use:   "pack <catalog>",
		Short: "Write .package fixtures from loose source files",
		Long: `Pack loose source files into .package files for one platform.

This is a development aid for building test deployments, not a production
packaging pipeline. Each record's source is read from <source>/<path>.

Examples:
  catalogctl pack catalog/ --source assets --root deploy --platform linux`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadCatalog(args[0])
			if err != nil {
				return err
			}
			written, skipped, err := packCatalog(cat, source, flags.root, flags.platform, skipMissing)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, path := range written {
				fmt.Fprintf(out, "wrote %s\n", path)
			}
			for _, id := range skipped {
				fmt.Fprintf(out, "skipped %s\n", id)
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&source, "source", "s", "assets", "source root")
	cmd.Flags().BoolVar(&skipMissing, "skip-missing", false, "skip records whose source file is missing")
	return cmd
}
