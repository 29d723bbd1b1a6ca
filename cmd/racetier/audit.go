package main

import (
	"github.com/spf13/cobra"

	"github.com/okian/racetier/internal/adapters/report"
	"github.com/okian/racetier/internal/adapters/repository"
	"github.com/okian/racetier/internal/domain/integrity"
	"github.com/okian/racetier/pkg/logger"
)

func newAuditCmd(root *rootOptions) *cobra.Command {
	var concurrency int
	cmd := &cobra.Command{
		Use:   "audit <dir>",
		Short: "Audit a corpus of race profiles",
		Long: `Load every *.json race profile in <dir> and check each rating against the
policy: dimension ranges, score drift, tier placement, override use, the
cultural impact gate and prestige alignment.

Prints "all N records pass" or the violations grouped by kind. Exits 1
when any violation is severe.

Examples:
  racetier audit ./races
  racetier audit ./races --format json
  racetier audit ./races --policy strict.yaml --concurrency 4`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			format, err := root.outputFormat()
			if err != nil {
				return err
			}
			cfg, err := root.loadConfig(cmd)
			if err != nil {
				return err
			}
			policy, err := cfg.Policy()
			if err != nil {
				return err
			}
			if concurrency <= 0 {
				concurrency = cfg.AuditConcurrency
			}

			corpus, err := repository.LoadCorpus(ctx, args[0])
			if err != nil {
				return err
			}
			v := integrity.New(policy,
				integrity.WithConcurrency(concurrency),
				integrity.WithLogger(logger.Named("integrity")),
			)
			rep, err := v.Validate(ctx, corpus.Records)
			if err != nil {
				return err
			}
			logger.Named("audit").Info(ctx, "corpus audited",
				logger.String("dir", corpus.Dir),
				logger.Int("records", rep.Records),
				logger.Int("skipped", len(corpus.Skipped)),
				logger.Int("violations", len(rep.Violations)),
			)

			if err := report.WriteAudit(cmd.OutOrStdout(), format, rep, corpus.Skipped); err != nil {
				return err
			}
			if rep.HasSevere() {
				return errSevere
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Records checked in parallel (defaults to audit_concurrency)")
	return cmd
}
