package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Narodni-repozitar/nr-Nresults/internal/schema"
	"github.com/Narodni-repozitar/nr-Nresults/plugins/nresults"
)

type validationReport struct {
	File     string              `json:"file"`
	Valid    bool                `json:"valid"`
	Errors   map[string][]string `json:"errors,omitempty"`
	Metadata map[string]any      `json:"metadata,omitempty"`
}

func newValidateCmd(opts *rootOptions) *cobra.Command {
	var showMetadata bool
	cmd := &cobra.Command{
		Use:   "validate FILE...",
		Short: "Validate N-results JSON documents",
		Long: `Load each JSON document with the N-results schema, dereferencing its
taxonomy links against the configured store, and print one JSON report per
file. Nothing is stored. The command fails when any document is invalid.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts.cfg, opts.logger, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close(cmd.Context()) }()

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			invalid := 0
			for _, file := range args {
				raw, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				var data map[string]any
				if err := json.Unmarshal(raw, &data); err != nil {
					return fmt.Errorf("%s: %w", file, err)
				}
				report := validationReport{File: file, Valid: true}
				loaded, err := a.service.Validate(cmd.Context(), nresults.RecordTypeName, data)
				switch ve, ok := schema.AsValidationError(err); {
				case err == nil:
					if showMetadata {
						report.Metadata = loaded
					}
				case ok:
					report.Valid = false
					report.Errors = ve.Fields()
					invalid++
				default:
					return fmt.Errorf("%s: %w", file, err)
				}
				if err := enc.Encode(report); err != nil {
					return err
				}
			}
			if invalid > 0 {
				return fmt.Errorf("%d of %d documents are invalid", invalid, len(args))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showMetadata, "metadata", false, "print the dereferenced metadata of valid documents")
	return cmd
}
