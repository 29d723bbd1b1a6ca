package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/racetier/internal/adapters/report"
	"github.com/okian/racetier/internal/config"
	"github.com/okian/racetier/internal/domain/rating"
	"github.com/okian/racetier/pkg/logger"
)

// errSevere reports an audit that found at least one severe violation. The
// report itself has already been printed.
var errSevere = errors.New("severe violations found")

type rootOptions struct {
	policyFile string
	format     string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "racetier",
		Short: "Race rating and tier classification",
		Long: `Classify race ratings into tiers and audit race-profile corpora.

Ratings score fourteen dimensions from 1 to 5. The weighted sum is scaled
to 0..100, optionally lifted by a cultural impact bonus, and mapped to
tiers 1..4. Prestige and editorial overrides may promote a race by at
most one tier.

The policy is read from RACETIER_CONFIG and RACETIER_* variables, or
from the file given with --policy.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.InitWithWriter(cmd.ErrOrStderr()); err != nil {
				return err
			}
			return logger.SetLevelString(opts.logLevel)
		},
	}
	cmd.PersistentFlags().StringVar(&opts.policyFile, "policy", "", "YAML policy file (defaults to RACETIER_CONFIG and env)")
	cmd.PersistentFlags().StringVar(&opts.format, "format", string(report.FormatText), "Output format (text, json, yaml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	cmd.AddCommand(newAuditCmd(opts), newClassifyCmd(opts), newNormalizeCmd(opts), newSubmitCmd(opts))
	return cmd
}

// loadConfig reads the policy file when one is given, otherwise the
// layered configuration.
func (o *rootOptions) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if o.policyFile != "" {
		return config.LoadFile(cmd.Context(), o.policyFile)
	}
	return config.Load(cmd.Context())
}

func (o *rootOptions) policy(cmd *cobra.Command) (rating.Policy, error) {
	cfg, err := o.loadConfig(cmd)
	if err != nil {
		return rating.Policy{}, err
	}
	return cfg.Policy()
}

func (o *rootOptions) outputFormat() (report.Format, error) {
	f, err := report.ParseFormat(o.format)
	if err != nil {
		return "", fmt.Errorf("--format: %w", err)
	}
	return f, nil
}
