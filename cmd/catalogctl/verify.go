package main

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/assetcatalog/internal/domain/catalog"
	"github.com/GriffinCanCode/assetcatalog/internal/domain/registry"
	"github.com/GriffinCanCode/assetcatalog/internal/host/packaged"
	"github.com/GriffinCanCode/assetcatalog/internal/shared/types"
)

// VerifyReport is the result of checking a deployment against a catalog.
type VerifyReport struct {
	Open        []string `json:"open"`
	Unavailable []string `json:"unavailable"`
	Stray       []string `json:"stray"`   // Deployed packages no descriptor names
	Missing     []string `json:"missing"` // Records absent from their open package
}

// OK reports whether every package opened and holds every record.
func (r VerifyReport) OK() bool {
	return len(r.Unavailable) == 0 && len(r.Missing) == 0
}

type recordLister interface {
	Records() []types.AssetRecord
}

func verify(ctx context.Context, cat *catalog.Catalog, root, platform string) (VerifyReport, error) {
	var report VerifyReport

	deployed, err := packaged.Scan(root, platform)
	if err != nil {
		return report, fmt.Errorf("scan deployment: %w", err)
	}

	reg := registry.New(cat, packaged.New(nil), registry.Options{Root: root, Platform: platform})
	if err := reg.Initialize(ctx); err != nil {
		return report, err
	}
	defer func() { _ = reg.Close(false) }()

	expected := make(map[string]bool)
	for _, st := range reg.Stats().Containers {
		expected[st.Name+types.PackageExt] = true
		if st.Open {
			report.Open = append(report.Open, st.Name)
		} else {
			report.Unavailable = append(report.Unavailable, st.Name)
		}
	}
	for _, rel := range deployed {
		if !expected[rel] {
			report.Stray = append(report.Stray, rel)
		}
	}

	for _, d := range cat.Descriptors {
		for _, rec := range d.Records {
			owner, ok := reg.FindOwner(rec.ID)
			if !ok || owner.Descriptor != d {
				continue
			}
			c, ok := reg.Container(owner.Container)
			if !ok {
				continue
			}
			lister, ok := c.(recordLister)
			if !ok {
				continue
			}
			if !slices.ContainsFunc(lister.Records(), func(r types.AssetRecord) bool { return r.ID == rec.ID }) {
				report.Missing = append(report.Missing, fmt.Sprintf("%s in %s", rec.ID, owner.Container))
			}
		}
	}
	return report, nil
}

func newVerifyCmd() *cobra.Command {
	var flags deployFlags

	cmd := &cobra.Command{
		Use:   "verify <catalog>",
		Short: "Open every package of a deployment and report problems",
		Long: `Open every package the catalog names for a platform.

Reports packages that fail to open, records missing from their package and
deployed .package files no descriptor names. Exits non-zero when a package
is unavailable or a record is missing; stray files are only reported.

Examples:
  catalogctl verify catalog/ --root deploy --platform linux`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadCatalog(args[0])
			if err != nil {
				return err
			}
			report, err := verify(cmd.Context(), cat, flags.root, flags.platform)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d open, %d unavailable, %d stray, %d missing records\n",
				len(report.Open), len(report.Unavailable), len(report.Stray), len(report.Missing))
			for _, name := range report.Unavailable {
				fmt.Fprintf(out, "unavailable: %s\n", name)
			}
			for _, m := range report.Missing {
				fmt.Fprintf(out, "missing: %s\n", m)
			}
			for _, s := range report.Stray {
				fmt.Fprintf(out, "stray: %s\n", s)
			}
			if !report.OK() {
				return fmt.Errorf("deployment %s/%s does not match the catalog", flags.root, flags.platform)
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}
