package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

const configTemplate = `version: "1"

server:
  listen: "%s"
  auth_token: "%s"

oracle:
  # Resolved from the environment at load time.
  api_key: "${OPENAI_API_KEY}"
  model: "%s"

database:
  path: "%s"
  table: "srag_cases"

artifacts:
  dir: "data/plots"

search:
  # Leave empty to disable the web_search tool.
  api_key: "${TAVILY_API_KEY:-}"

agent:
  max_steps: 10
  max_input_chars: 8000

trace:
  jsonl_path: "data/traces/runs.jsonl"

reports:
%s  dir: "data/reports"

logging:
  level: "info"
  format: "json"
`

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create a vigil.yaml interactively",
		RunE: func(_ *cobra.Command, _ []string) error {
			const path = "vigil.yaml"
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists, refusing to overwrite", path)
			}

			listen := ":8080"
			model := "gpt-4o-mini"
			dbPath := "data/srag.db"
			authToken := ""
			dailyReports := false

			form := huh.NewForm(
				huh.NewGroup(
					huh.NewInput().
						Title("Case database path").
						Description("SQLite file with the srag_cases table").
						Value(&dbPath),
					huh.NewInput().
						Title("Listen address").
						Value(&listen),
					huh.NewSelect[string]().
						Title("Oracle model").
						Options(huh.NewOptions("gpt-4o-mini", "gpt-4o", "gpt-4.1")...).
						Value(&model),
					huh.NewInput().
						Title("API auth token").
						Description("Empty disables auth; only safe on a loopback bind").
						EchoMode(huh.EchoModePassword).
						Value(&authToken),
					huh.NewConfirm().
						Title("Schedule a daily report at 07:00?").
						Value(&dailyReports),
				),
			)
			if err := form.Run(); err != nil {
				return err
			}

			schedule := ""
			if dailyReports {
				schedule = "  schedule: \"0 7 * * *\"\n"
			}

			content := fmt.Sprintf(configTemplate, listen, authToken, model, dbPath, schedule)
			if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
				return err
			}

			fmt.Printf("Wrote %s. Set OPENAI_API_KEY and run: vigil serve\n", path)
			return nil
		},
	}
}
