package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"civicwatch/internal/config"
	"civicwatch/internal/domain"
	"civicwatch/internal/services/alerts"
	"civicwatch/internal/workers/evalrunner"
)

func evaluateCommand(opts *rootOptions) *cobra.Command {
	var (
		orgIDs      []string
		concurrency int
	)
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Run alert evaluation once and print the outcome per organization",
		Long: "Run alert evaluation for the given organizations (default: all) without the job queue.\n" +
			"A failing organization does not stop the others; the command exits non-zero if any failed.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.envFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			log := newLogger(cfg)
			ctx := cmd.Context()

			st, closeStore, err := openStore(ctx, cfg, opts, false, log)
			if err != nil {
				return err
			}
			defer closeStore()

			if len(orgIDs) == 0 {
				if orgIDs, err = st.ListOrganizationIDs(ctx); err != nil {
					return fmt.Errorf("list organizations: %w", err)
				}
			}
			evaluator := alerts.New(st, st, alerts.Sources{DAF: st, Donors: st, Filings: st}, alerts.WithLogger(log))
			evals, runErr := evalrunner.EvaluateAll(ctx, evalrunner.EvaluatorProcessor{Evaluator: evaluator}, orgIDs, concurrency)

			out := cmd.OutOrStdout()
			for _, e := range evals {
				if e.OrgID == "" {
					continue
				}
				fmt.Fprintf(out, "%s\tcreated=%d suppressed=%d no_trigger=%d failed=%d\n", e.OrgID,
					e.Count(domain.OutcomeCreated), e.Count(domain.OutcomeSuppressed),
					e.Count(domain.OutcomeNoTrigger), e.Count(domain.OutcomeFailed))
			}
			return runErr
		},
	}
	cmd.Flags().StringSliceVar(&orgIDs, "org", nil, "Organization id to evaluate (repeatable)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "Organizations evaluated in parallel")
	return cmd
}
