package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/tainttrace/api/schemas"
	"github.com/xkilldash9x/tainttrace/internal/config"
	"github.com/xkilldash9x/tainttrace/internal/discovery"
	"github.com/xkilldash9x/tainttrace/internal/engine"
	"github.com/xkilldash9x/tainttrace/internal/observability"
)

type scanOptions struct {
	repo           string
	persist        bool
	failOnFindings bool
}

// newScanCmd creates and configures the `scan` command.
func newScanCmd(provider storeProvider) *cobra.Command {
	var opts scanOptions

	scanCmd := &cobra.Command{
		Use:   "scan [paths...]",
		Short: "Scans files, directories or a git repository for taint flows",
		Long: `Discovers Python and React sources under the given paths (or in a cloned
repository with --repo), runs the taint analyzers on every file and writes
the findings in the selected report format.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && opts.repo == "" {
				return errors.New("requires at least one path or --repo")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			return runScan(ctx, observability.GetLogger(), cfg, args, opts, provider)
		},
	}

	flags := scanCmd.Flags()
	flags.StringP("output", "o", "", "Output file path (default stdout)")
	flags.StringP("format", "f", "json", "Report format: json, sarif or text")
	flags.IntP("concurrency", "j", 8, "Number of files analyzed in parallel")
	flags.Bool("color", false, "Colorize the text report")
	flags.Bool("fail-on-parse-error", false, "Abort the scan on the first file that cannot be parsed")
	flags.StringVar(&opts.repo, "repo", "", "Clone and scan a git repository URL")
	flags.BoolVar(&opts.persist, "store", false, "Persist the scan in the database (TAINTTRACE_DATABASE_URL)")
	flags.BoolVar(&opts.failOnFindings, "fail-on-findings", false, "Exit with a non-zero status when findings are reported")
	return scanCmd
}

// runScan contains the core, testable logic of the scan command.
func runScan(ctx context.Context, logger *zap.Logger, cfg *config.Config, paths []string, opts scanOptions, provider storeProvider) error {
	targets := make([]string, 0, len(paths)+1)
	for _, p := range paths {
		expanded, err := expandPath(p)
		if err != nil {
			return err
		}
		targets = append(targets, expanded)
	}

	if opts.repo != "" {
		dir, err := os.MkdirTemp("", "tainttrace-clone-*")
		if err != nil {
			return fmt.Errorf("failed to create clone directory: %w", err)
		}
		defer os.RemoveAll(dir)

		logger.Info("Cloning repository", zap.String("repo", opts.repo))
		head, err := discovery.CloneRepository(ctx, opts.repo, dir)
		if err != nil {
			return err
		}
		logger.Info("Repository cloned", zap.String("repo", opts.repo), zap.String("commit", head))
		targets = append(targets, dir)
	}

	result, err := engine.NewFromConfig(cfg, logger).Run(ctx, targets)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if err := writeReport(logger, cfg.Report, result); err != nil {
		return err
	}

	if opts.persist {
		if err := persistScan(ctx, cfg, provider, result); err != nil {
			return err
		}
	}

	if opts.failOnFindings && len(result.Findings) > 0 {
		return fmt.Errorf("%d %w", len(result.Findings), ErrFindingsReported)
	}
	return nil
}

func persistScan(ctx context.Context, cfg *config.Config, provider storeProvider, result *schemas.ScanResult) error {
	storeService, cleanup, err := provider.Create(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	if cleanup != nil {
		defer cleanup()
	}
	if err := storeService.PersistScan(ctx, result); err != nil {
		return fmt.Errorf("failed to persist scan %s: %w", result.ScanID, err)
	}
	return nil
}
