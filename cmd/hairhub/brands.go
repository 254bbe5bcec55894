package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ihblv/hairhub-server/internal/brands"
)

func brandsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "brands [category]",
		Short: "List supported brands with their mixing rules",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.registry()
			if err != nil {
				return err
			}
			categories := brands.Categories
			if len(args) == 1 {
				categories = []brands.Category{brands.ParseCategory(args[0])}
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CATEGORY\tBRAND\tRATIO\tDEVELOPER\tDEFAULT")
			for _, cat := range categories {
				def := reg.Default(cat).Name
				for _, rule := range reg.Brands(cat) {
					mark := ""
					if rule.Name == def {
						mark = "*"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", cat, rule.Name, rule.Ratio, rule.CanonicalDeveloper(), mark)
				}
			}
			return tw.Flush()
		},
	}
}

func catalogCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the brand catalog",
	}
	var from string
	importCmd := &cobra.Command{
		Use:   "import <sqlite-path>",
		Short: "Write a YAML catalog (or the built-in one) into a SQLite database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				c   brands.Catalog
				err error
			)
			if from != "" {
				c, err = brands.LoadFile(from)
			} else {
				c, err = brands.DefaultCatalog()
			}
			if err != nil {
				return err
			}
			if err := c.Validate(); err != nil {
				return err
			}
			store, err := brands.OpenSQLiteCatalog(args[0])
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Save(c); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d brands into %s\n", len(c.Brands), args[0])
			return nil
		},
	}
	importCmd.Flags().StringVar(&from, "from", "", "YAML catalog to import (default: built-in)")
	cmd.AddCommand(importCmd)
	return cmd
}
