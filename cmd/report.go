// File: cmd/report.go
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/tainttrace/api/schemas"
	"github.com/xkilldash9x/tainttrace/internal/config"
	"github.com/xkilldash9x/tainttrace/internal/observability"
	"github.com/xkilldash9x/tainttrace/internal/reporting"
)

// newReportCmd creates and configures the `report` command.
func newReportCmd(provider storeProvider) *cobra.Command {
	var scanID string

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Generate a report for a stored scan",
		Long:  `Loads the findings of a scan persisted with 'scan --store' and writes them in the selected report format.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			return runReport(ctx, observability.GetLogger(), cfg, scanID, provider)
		},
	}

	reportCmd.Flags().StringVar(&scanID, "scan-id", "", "The ID of the scan to generate a report for (required)")
	_ = reportCmd.MarkFlagRequired("scan-id")
	reportCmd.Flags().StringP("output", "o", "", "Output file path (default stdout)")
	reportCmd.Flags().StringP("format", "f", "json", "Report format: json, sarif or text")
	reportCmd.Flags().Bool("color", false, "Colorize the text report")
	return reportCmd
}

// runReport contains the core, testable logic for generating a report.
func runReport(ctx context.Context, logger *zap.Logger, cfg *config.Config, scanID string, provider storeProvider) error {
	logger.Info("Starting report generation", zap.String("scan_id", scanID))

	storeService, cleanup, err := provider.Create(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	result, err := storeService.GetScan(ctx, scanID)
	if err != nil {
		return fmt.Errorf("failed to load scan: %w", err)
	}
	return writeReport(logger, cfg.Report, result)
}

// writeReport writes result with the reporter selected by the report config.
func writeReport(logger *zap.Logger, cfg config.ReportConfig, result *schemas.ScanResult) error {
	output, err := expandPath(cfg.Output)
	if err != nil {
		return err
	}

	reporter, err := reporting.New(cfg.Format, output, Version, reporting.WithColor(cfg.Color))
	if err != nil {
		return fmt.Errorf("failed to initialize reporter: %w", err)
	}

	if err := reporter.Write(result); err != nil {
		_ = reporter.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := reporter.Close(); err != nil {
		return fmt.Errorf("failed to finalize report: %w", err)
	}

	if output != "" && output != "stdout" {
		logger.Info("Report successfully written to file", zap.String("path", output), zap.String("format", cfg.Format))
	}
	return nil
}
