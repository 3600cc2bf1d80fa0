package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kiranshivaraju/leaselens/internal/report"
	"github.com/kiranshivaraju/leaselens/pkg/models"
)

var (
	analyzeOut    string
	analyzeJSON   bool
	analyzeNoSave bool
	analyzeMeta   metadataFlags
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file]",
	Short: "Run the full analysis and write a report",
	Long: `Loads the lease, then summarizes it, flags problematic clauses, compares
the rent with the local market when city, state and rent are known, drafts
rewrites for the most serious clauses and explains tenant rights.

The report is printed and saved as lease_analysis_<timestamp>.txt unless
--out or --no-save is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVarP(&analyzeOut, "out", "o", "", "report file path (default lease_analysis_<timestamp>.txt)")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "print the analysis as JSON instead of the text report")
	analyzeCmd.Flags().BoolVar(&analyzeNoSave, "no-save", false, "do not write the report to disk")
	analyzeMeta.register(analyzeCmd.Flags())
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	sess, err := loadLease(ctx, cmd, args[0], analyzeMeta.known(cmd))
	if err != nil {
		return err
	}

	cmd.PrintErrln("Running full analysis...")
	result, err := sess.RunFullAnalysis(ctx)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	text := report.Format(result)
	if analyzeJSON {
		if err := outputAnalysisJSON(cmd, result); err != nil {
			return err
		}
	} else {
		cmd.Print(text)
	}

	if analyzeNoSave {
		return nil
	}
	path := analyzeOut
	if path == "" {
		path = report.FileName(now())
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	cmd.PrintErrf("Report saved to %s\n", path)
	return nil
}

func outputAnalysisJSON(cmd *cobra.Command, result *models.AnalysisResult) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal analysis: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
