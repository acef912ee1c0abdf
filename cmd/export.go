package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/fleetaudit/internal/export"
	"github.com/sells-group/fleetaudit/internal/model"
	"github.com/sells-group/fleetaudit/internal/store"
)

var (
	exportOutPath        string
	exportVerifiedStatus string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export leads to a SmartLead-compatible CSV",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		leads, err := st.ListLeads(ctx, store.LeadFilter{
			VerifiedStatus: model.VerifyStatus(exportVerifiedStatus),
			Limit:          10000,
		})
		if err != nil {
			return eris.Wrap(err, "list leads")
		}

		out := os.Stdout
		if exportOutPath != "" {
			out, err = os.Create(exportOutPath)
			if err != nil {
				return eris.Wrap(err, "create output file")
			}
			defer out.Close()
		}

		if err := export.WriteSmartLeadCSV(out, leads); err != nil {
			return eris.Wrap(err, "write csv")
		}

		zap.L().Info("export complete",
			zap.Int("leads", len(leads)),
			zap.String("out", exportOutPath),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOutPath, "out", "", "output file path (default stdout)")
	exportCmd.Flags().StringVar(&exportVerifiedStatus, "verified-status", "", "filter by verified status (valid, invalid, accept_all, unknown, pending)")
	rootCmd.AddCommand(exportCmd)
}
