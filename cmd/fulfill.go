package main

import (
	"sync/atomic"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/fleetaudit/internal/model"
	"github.com/sells-group/fleetaudit/internal/store"
)

var (
	fulfillLeadIDs []string
	fulfillLimit   int
)

// fulfillCmd re-runs fulfillment outside the request path, for leads whose
// background run failed or never happened.
var fulfillCmd = &cobra.Command{
	Use:   "fulfill",
	Short: "Run fulfillment for stored leads",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		var leads []model.Lead
		if len(fulfillLeadIDs) > 0 {
			for _, id := range fulfillLeadIDs {
				lead, err := env.Store.GetLead(ctx, id)
				if err != nil {
					return eris.Wrapf(err, "lead %s", id)
				}
				leads = append(leads, *lead)
			}
		} else {
			leads, err = env.Store.ListLeads(ctx, store.LeadFilter{Limit: fulfillLimit})
			if err != nil {
				return eris.Wrap(err, "list leads")
			}
		}

		if len(leads) == 0 {
			zap.L().Info("no leads to fulfill")
			return nil
		}

		workers := cfg.Fulfillment.Workers
		if workers < 1 {
			workers = 1
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)

		var completed, aborted atomic.Int64
		for i := range leads {
			lead := leads[i]
			g.Go(func() error {
				report, err := env.Orchestrator.Run(gctx, &lead)
				if err != nil {
					zap.L().Error("fulfillment run failed",
						zap.String("lead_id", lead.ID),
						zap.Error(err))
					aborted.Add(1)
					return nil
				}
				if report.Status == model.RunStatusAborted {
					aborted.Add(1)
				} else {
					completed.Add(1)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		zap.L().Info("fulfillment batch complete",
			zap.Int64("completed", completed.Load()),
			zap.Int64("aborted", aborted.Load()),
		)
		return nil
	},
}

func init() {
	fulfillCmd.Flags().StringSliceVar(&fulfillLeadIDs, "lead", nil, "lead ID to fulfill (repeatable; default all stored leads)")
	fulfillCmd.Flags().IntVar(&fulfillLimit, "limit", 100, "max leads to fulfill when no --lead is given")
	rootCmd.AddCommand(fulfillCmd)
}
