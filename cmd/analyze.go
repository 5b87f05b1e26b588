package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/inspect-cli/internal/model"
)

var (
	analyzeFile  string
	analyzeRunID string
	analyzeOut   string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a single inspection report",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		doc, err := os.ReadFile(analyzeFile)
		if err != nil {
			return eris.Wrap(err, "read report file")
		}

		env, err := initPipeline()
		if err != nil {
			return err
		}
		defer env.Close()

		runID := analyzeRunID
		if runID == "" {
			runID = uuid.NewString()
		}

		st := env.Pipeline.Run(ctx, doc, runID, func(ev model.ProgressEvent) {
			fmt.Fprintln(os.Stderr, ev.Message)
		})

		zap.L().Info("analysis complete",
			zap.String("run_id", runID),
			zap.Int("findings", len(st.Findings)),
			zap.Bool("report_produced", st.FinalReport != ""),
		)

		if st.FinalReport == "" {
			fmt.Fprintln(os.Stderr, "No report produced: the document yielded no findings.")
			return nil
		}

		if analyzeOut != "" {
			if err := os.WriteFile(analyzeOut, []byte(st.FinalReport), 0o644); err != nil {
				return eris.Wrap(err, "write report file")
			}
			fmt.Fprintf(os.Stderr, "Report written to %s\n", analyzeOut)
			return nil
		}

		fmt.Println(st.FinalReport)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeFile, "file", "", "path to the inspection report (required)")
	analyzeCmd.Flags().StringVar(&analyzeRunID, "run-id", "", "run identifier (default: random UUID)")
	analyzeCmd.Flags().StringVar(&analyzeOut, "out", "", "write the report to this path instead of stdout")
	_ = analyzeCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(analyzeCmd)
}
