package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// newRulesCmd prints the effective classifier configuration, after the
// config file, environment and defaults have been merged.
func newRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "Print the effective source, sink and sanitizer rules as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			doc := struct {
				Rules interface{} `yaml:"rules"`
			}{Rules: cfg.Rules}
			if err := enc.Encode(doc); err != nil {
				return fmt.Errorf("failed to encode rules: %w", err)
			}
			return enc.Close()
		},
	}
}
