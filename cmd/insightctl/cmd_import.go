package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/noah-isme/enrollment-insight-api/internal/app"
)

var (
	importUnit string
	importFile string
)

// importCmd replaces a unit's records synchronously.
var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Replace a unit's records with a spreadsheet",
	Long: `Reads an .xlsx or .csv file and mirrors its rows into the record store,
replacing every record of the unit. Runs in the foreground and prints the
sync report.`,
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVar(&importUnit, "unit", "", "unit identifier")
	importCmd.Flags().StringVarP(&importFile, "file", "f", "", "spreadsheet to import")
	_ = importCmd.MarkFlagRequired("unit")
	_ = importCmd.MarkFlagRequired("file")
}

func runImport(cmd *cobra.Command, args []string) error {
	payload, err := os.ReadFile(importFile)
	if err != nil {
		return fmt.Errorf("read %s: %w", importFile, err)
	}

	application, err := app.New(cmd.Context(), cfg, logr)
	if err != nil {
		return err
	}
	defer application.Close() //nolint:errcheck

	report, err := application.RunImport(cmd.Context(), importUnit, filepath.Base(importFile), payload)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return err
	}
	if report.Degraded() {
		return fmt.Errorf("import for %s finished degraded: %d of %d batches failed", report.UnitID, report.FailedBatches, report.Batches)
	}
	return nil
}
