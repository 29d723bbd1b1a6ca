package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/okian/racetier/internal/adapters/report"
	"github.com/okian/racetier/internal/adapters/repository"
	"github.com/okian/racetier/internal/domain/integrity"
	"github.com/okian/racetier/internal/domain/model"
	"github.com/okian/racetier/internal/domain/rating"
)

func newClassifyCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <file>",
		Short: "Classify one race profile",
		Long: `Print the recomputed score, the base and effective tier and the override
state of one race profile, followed by its violations.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := root.outputFormat()
			if err != nil {
				return err
			}
			policy, err := root.policy(cmd)
			if err != nil {
				return err
			}
			r, err := repository.LoadProfile(args[0])
			if err != nil {
				return err
			}

			out := model.Classified{Violations: integrity.New(policy).Check(r)}
			cls, err := policy.Evaluate(r)
			switch {
			case err == nil:
				out.Classification = &cls
			case errors.Is(err, rating.ErrMissingDimension), errors.Is(err, rating.ErrScoreOutOfRange):
				// Reported through the violations.
			default:
				return err
			}
			if err := report.WriteClassified(cmd.OutOrStdout(), format, out); err != nil {
				return err
			}
			for _, v := range out.Violations {
				if v.Severity == integrity.SeveritySevere {
					return errSevere
				}
			}
			return nil
		},
	}
}
