package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vigil-agent/vigil/internal/app"
)

// reportTimeout bounds a one-shot report run from the CLI.
const reportTimeout = 10 * time.Minute

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate one executive report and print it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			focus, _ := cmd.Flags().GetString("focus")
			output, _ := cmd.Flags().GetString("output")

			ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
			defer cancel()

			a, err := app.New(ctx, *cfg, version)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close(context.Background()) }()

			rep, err := a.GenerateReport(ctx, focus)
			if err != nil {
				return fmt.Errorf("report run %s ended %s: %w", rep.RunID, rep.Outcome, err)
			}

			if output != "" {
				if err := os.WriteFile(output, []byte(rep.Markdown), 0o644); err != nil {
					return err
				}
				fmt.Printf("Report written to %s (run %s, %d artifacts)\n", output, rep.RunID, len(rep.Artifacts))
				return nil
			}
			fmt.Println(rep.Markdown)
			return nil
		},
	}
	cmd.Flags().StringP("config", "c", "", "Path to configuration file")
	cmd.Flags().String("focus", "", "Narrow the report to one area of analysis")
	cmd.Flags().StringP("output", "o", "", "Write the report to a file instead of stdout")
	return cmd
}
