package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/racetier/internal/adapters/http/client"
	"github.com/okian/racetier/internal/adapters/report"
	"github.com/okian/racetier/internal/adapters/repository"
	"github.com/okian/racetier/internal/domain/model"
	"github.com/okian/racetier/pkg/logger"
)

var errRunFailed = errors.New("audit run failed")

type submitOptions struct {
	server  string
	key     string
	timeout time.Duration
	noWait  bool
	verify  int
}

func newSubmitCmd(root *rootOptions) *cobra.Command {
	opts := &submitOptions{}
	cmd := &cobra.Command{
		Use:   "submit <dir>",
		Short: "Submit a corpus to a running raterd",
		Long: `Load every *.json race profile in <dir>, queue it on raterd with POST
/audits and wait for the run to finish. The report is printed the same
way audit prints it, and the exit code follows the same rules.

With --verify N the top N ratings are fetched afterwards and checked for
rank order.

Examples:
  racetier submit ./races --server http://localhost:9080
  racetier submit ./races --key nightly-2026-10-18 --no-wait
  racetier submit ./races --verify 20`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			format, err := root.outputFormat()
			if err != nil {
				return err
			}
			log := logger.Named("submit")

			corpus, err := repository.LoadCorpus(ctx, args[0])
			if err != nil {
				return err
			}
			if len(corpus.Records) == 0 {
				return fmt.Errorf("no readable profiles in %s", corpus.Dir)
			}

			c := client.New(opts.server, client.WithTimeout(opts.timeout))
			if err := c.Health(ctx); err != nil {
				return err
			}
			sub, err := c.SubmitAudit(ctx, opts.key, corpus.Records)
			if err != nil {
				return err
			}
			log.Info(ctx, "corpus submitted",
				logger.String("run_id", sub.RunID),
				logger.Bool("duplicate", sub.Duplicate),
				logger.Int("records", len(corpus.Records)),
			)
			if opts.noWait {
				fmt.Fprintln(cmd.OutOrStdout(), sub.RunID)
				return nil
			}

			run, err := c.WaitAuditRun(ctx, sub.RunID)
			if err != nil {
				return err
			}
			if run.Status == model.RunFailed || run.Report == nil {
				return fmt.Errorf("%w: %s: %s", errRunFailed, run.ID, run.Error)
			}
			if err := report.WriteAudit(cmd.OutOrStdout(), format, *run.Report, corpus.Skipped); err != nil {
				return err
			}

			if opts.verify > 0 {
				entries, err := c.Ratings(ctx, opts.verify)
				if err != nil {
					return err
				}
				if err := client.VerifyRanking(entries); err != nil {
					return err
				}
				log.Info(ctx, "ratings verified", logger.Int("entries", len(entries)))
			}
			if run.Report.HasSevere() {
				return errSevere
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.server, "server", "http://localhost:9080", "Base URL of raterd")
	cmd.Flags().StringVar(&opts.key, "key", "", "Idempotency key; a replayed key returns the original run")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "Per-request timeout")
	cmd.Flags().BoolVar(&opts.noWait, "no-wait", false, "Print the run id and exit without waiting")
	cmd.Flags().IntVar(&opts.verify, "verify", 0, "Check the rank order of the top N ratings after the run")
	return cmd
}
