package main

import (
	"github.com/spf13/cobra"

	"github.com/okian/racetier/internal/adapters/report"
	"github.com/okian/racetier/internal/adapters/repository"
	"github.com/okian/racetier/pkg/logger"
)

func newNormalizeCmd(root *rootOptions) *cobra.Command {
	var write bool
	cmd := &cobra.Command{
		Use:   "normalize <dir>",
		Short: "Bring stored scores and tiers in line with the policy",
		Long: `Plan, and with --write apply, the corrections that make every profile in
<dir> agree with its classification: the published score, the tier and
any tier aliases and labels present, and override reasons that no longer
promote the race. Only keys of the rating record are rewritten.

Examples:
  racetier normalize ./races
  racetier normalize ./races --write`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			format, err := root.outputFormat()
			if err != nil {
				return err
			}
			policy, err := root.policy(cmd)
			if err != nil {
				return err
			}
			corpus, err := repository.LoadCorpus(ctx, args[0])
			if err != nil {
				return err
			}
			corrections, skipped, err := corpus.Normalize(ctx, policy, write)
			if err != nil {
				return err
			}
			skipped = append(corpus.Skipped, skipped...)
			logger.Named("normalize").Info(ctx, "corpus normalized",
				logger.String("dir", corpus.Dir),
				logger.Int("corrections", len(corrections)),
				logger.Int("skipped", len(skipped)),
				logger.Bool("write", write),
			)
			return report.WriteCorrections(cmd.OutOrStdout(), format, corrections, skipped, write)
		},
	}
	cmd.Flags().BoolVar(&write, "write", false, "Rewrite the profiles in place")
	return cmd
}
