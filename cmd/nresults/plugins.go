package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

func newPluginsCmd(opts *rootOptions) *cobra.Command {
	var appConfig bool
	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "List installed plugins",
		Long: `Print the installed plugins and what they register as JSON.

With --app-config the merged REST endpoint, facet, sort and search index
configuration is printed instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), opts.cfg, opts.logger, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close(cmd.Context()) }()

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if appConfig {
				return enc.Encode(a.service.Config())
			}
			return enc.Encode(a.service.RegisteredPlugins())
		},
	}
	cmd.Flags().BoolVar(&appConfig, "app-config", false, "print the merged application configuration")
	return cmd
}
