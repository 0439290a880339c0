package main

import (
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Narodni-repozitar/nr-Nresults/internal/config"
	"github.com/Narodni-repozitar/nr-Nresults/internal/logging"
)

// rootOptions carries the state shared by every subcommand.
type rootOptions struct {
	v       *viper.Viper
	cfgFile string
	cfg     config.Config
	logger  *slog.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{v: viper.New()}
	cmd := &cobra.Command{
		Use:           "nresults",
		Short:         "N-results record repository",
		Long:          `Serves the N-results REST API and maintains its records, taxonomies and search indexes.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd)
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.cfgFile, "config", "c", "", "config file (YAML)")
	cmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn or error")
	cmd.PersistentFlags().String("storage", "", "storage driver: memory, sqlite or postgres")
	_ = opts.v.BindPFlag("log.level", cmd.PersistentFlags().Lookup("log-level"))
	_ = opts.v.BindPFlag("storage.driver", cmd.PersistentFlags().Lookup("storage"))

	cmd.AddCommand(
		newServeCmd(opts),
		newValidateCmd(opts),
		newTaxonomyCmd(opts),
		newPluginsCmd(opts),
	)
	return cmd
}

func (o *rootOptions) load(cmd *cobra.Command) error {
	cfg, err := config.Load(o.v, o.cfgFile)
	if err != nil {
		return err
	}
	lc := cfg.LoggingConfig()
	lc.Output = cmd.ErrOrStderr()
	logger, err := logging.New(lc)
	if err != nil {
		return err
	}
	o.cfg = cfg
	o.logger = logger
	return nil
}
