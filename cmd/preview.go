package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/fleetaudit/pkg/fmcsa"
)

var previewCmd = &cobra.Command{
	Use:   "preview <dot-number>",
	Short: "Fetch a carrier's safety snapshot and print the risk assessment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		carriers := fmcsa.NewClient(cfg.FMCSA.WebKey, fmcsa.WithBaseURL(cfg.FMCSA.BaseURL))

		snap, err := carriers.GetCarrier(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "fetch carrier")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(fmcsa.Assess(snap))
	},
}

func init() {
	rootCmd.AddCommand(previewCmd)
}
