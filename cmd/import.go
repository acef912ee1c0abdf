package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/fleetaudit/internal/ingest"
	"github.com/sells-group/fleetaudit/internal/model"
)

var importFilePath string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import an FMCSA census file (CSV or XLSX) into the fleet table",
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

		var records []model.FleetRecord
		switch strings.ToLower(filepath.Ext(importFilePath)) {
		case ".xlsx":
			records, err = ingest.ReadFleetXLSX(importFilePath)
		default:
			f, openErr := os.Open(importFilePath)
			if openErr != nil {
				return eris.Wrap(openErr, "open census file")
			}
			defer f.Close()
			records, err = ingest.ReadFleetCSV(f)
		}
		if err != nil {
			return eris.Wrap(err, "read census file")
		}

		count, err := st.UpsertFleet(ctx, records)
		if err != nil {
			return eris.Wrap(err, "upsert fleet records")
		}

		zap.L().Info("import complete",
			zap.Int("imported_rows", count),
			zap.String("file", importFilePath),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importFilePath, "file", "", "path to census CSV or XLSX file (required)")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
