package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/assetcatalog/internal/domain/catalog"
	errs "github.com/GriffinCanCode/assetcatalog/internal/shared/errors"
	"github.com/GriffinCanCode/assetcatalog/internal/shared/types"
)

// DescriptorReport summarizes one descriptor.
type DescriptorReport struct {
	Name       string            `json:"name"`
	Packing    types.PackingMode `json:"packing"`
	Records    int               `json:"records"`
	Packages   []string          `json:"packages"`
	Duplicates []string          `json:"duplicates,omitempty"` // Repeated inside this descriptor
}

// InspectReport summarizes a catalog.
type InspectReport struct {
	Descriptors []DescriptorReport  `json:"descriptors"`
	Records     int                 `json:"records"`
	Duplicates  []catalog.Duplicate `json:"duplicates,omitempty"` // Listed by more than one descriptor
}

func inspect(cat *catalog.Catalog) InspectReport {
	report := InspectReport{Records: cat.Records(), Duplicates: cat.Duplicates()}
	for _, d := range cat.Descriptors {
		dr := DescriptorReport{
			Name:     d.Name,
			Packing:  d.Packing.OrDefault(),
			Records:  d.Len(),
			Packages: d.PackageNames(),
		}
		if err := d.RefreshLookupTable(); err != nil {
			dr.Duplicates = duplicateIDs(err)
		}
		report.Descriptors = append(report.Descriptors, dr)
	}
	return report
}

// duplicateIDs lists the content ids named by a duplicate error, which is a
// join of one error per repeated record.
func duplicateIDs(err error) []string {
	list := []error{err}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		list = joined.Unwrap()
	}
	ids := make([]string, 0, len(list))
	for _, e := range list {
		var ce *errs.Error
		if errors.As(e, &ce) && ce.ContentID != "" {
			ids = append(ids, ce.ContentID)
		}
	}
	return ids
}

func newInspectCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "inspect <catalog>",
		Short: "Summarize descriptors, record counts and duplicate ids",
		Long: `Summarize a catalog file or directory.

Duplicate ids inside a descriptor and ids listed by more than one descriptor
are reported; the first occurrence (in catalog order) is the one loads use.

Examples:
  catalogctl inspect catalog/
  catalogctl inspect catalog.yaml --json | jq '.duplicates'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadCatalog(args[0])
			if err != nil {
				return err
			}
			report := inspect(cat)

			out := cmd.OutOrStdout()
			if asJSON {
				data, err := sonic.ConfigStd.MarshalIndent(report, "", "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out, string(data))
				return err
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DESCRIPTOR\tPACKING\tRECORDS\tPACKAGES\tDUPLICATES")
			for _, d := range report.Descriptors {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n",
					d.Name, d.Packing, d.Records, len(d.Packages), strings.Join(d.Duplicates, ","))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "%d descriptors, %d records\n", len(report.Descriptors), report.Records)
			for _, dup := range report.Duplicates {
				fmt.Fprintf(out, "duplicate %s: %s (owner %s)\n", dup.ID, strings.Join(dup.Descriptors, ", "), dup.Descriptors[0])
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}
