package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newTaxonomyCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "taxonomy",
		Short: "Maintain taxonomies",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "import FILE...",
		Short: "Import taxonomy seed files",
		Long: `Create the taxonomies and terms declared in YAML seed files. Terms that
already exist get their extra data replaced. Importing a seed twice is safe.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts.cfg, opts.logger, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close(cmd.Context()) }()
			for _, file := range args {
				stats, err := a.taxonomy.ImportFile(cmd.Context(), file)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d taxonomies, %d terms created, %d terms updated\n",
					file, stats.Taxonomies, stats.Created, stats.Updated)
			}
			return nil
		},
	})
	return cmd
}
