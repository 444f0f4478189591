package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mraysmit/apex-sub000/internal/engine"
	"github.com/mraysmit/apex-sub000/internal/value"
)

func newEvaluateCommand() *cobra.Command {
	var (
		scenarioID string
		recordFile string
		timeout    time.Duration
		snapshot   bool
	)

	cmd := &cobra.Command{
		Use:   "evaluate <data-type>",
		Short: "Route a data type and evaluate one record against it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if recordFile == "" {
				return fmt.Errorf("--record is required")
			}

			e, err := newEngine()
			if err != nil {
				return err
			}
			if err := loadTree(e); err != nil {
				return err
			}

			program, err := e.Route(args[0], scenarioID)
			if err != nil {
				return err
			}

			record, err := readRecord(recordFile)
			if err != nil {
				return err
			}

			report, err := e.Evaluate(program, record, engine.EvaluateOptions{
				Timeout:         timeout,
				IncludeSnapshot: snapshot,
			})
			if err != nil {
				return err
			}

			printReport(cmd, report)
			return nil
		},
	}

	cmd.Flags().StringVar(&scenarioID, "scenario", "", "explicit scenario id, overriding registry resolution")
	cmd.Flags().StringVar(&recordFile, "record", "", "path to a YAML or JSON file holding the record to evaluate")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "evaluation deadline, 0 uses the engine default")
	cmd.Flags().BoolVar(&snapshot, "snapshot", false, "include the enriched context snapshot in the output")
	return cmd
}

func readRecord(path string) (map[string]value.Value, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var generic map[string]any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	record := make(map[string]value.Value, len(generic))
	for k, v := range generic {
		record[k] = value.FromAny(v)
	}
	return record, nil
}

func printReport(cmd *cobra.Command, report engine.Report) {
	out := cmd.OutOrStdout()
	for _, r := range report.Results {
		fmt.Fprintf(out, "%-24s %-10s %-8s %s\n", r.RuleID, r.Outcome, r.Severity, r.Message)
	}
	fmt.Fprintf(out, "\ndecision: %s\n", report.Decision)

	if !report.Snapshot.IsNull() {
		m, ok := report.Snapshot.AsMap()
		if ok {
			plain := make(map[string]any, len(m))
			for k, v := range m {
				plain[k] = value.ToAny(v)
			}
			snapYAML, err := yaml.Marshal(plain)
			if err == nil {
				fmt.Fprintf(out, "\nsnapshot:\n%s", snapYAML)
			}
		}
	}
}
