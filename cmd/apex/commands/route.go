package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRouteCommand() *cobra.Command {
	var scenarioID string

	cmd := &cobra.Command{
		Use:   "route <data-type>",
		Short: "Resolve a data type to its scenario and rule-config files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			fmt.Fprintf(cmd.OutOrStdout(), "scenario: %s\n", program.Scenario.ID)
			fmt.Fprintf(cmd.OutOrStdout(), "data-types: %v\n", program.Scenario.DataTypes)
			fmt.Fprintf(cmd.OutOrStdout(), "rule-config-files:\n")
			for _, f := range program.Scenario.RuleConfigFiles {
				fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", f)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&scenarioID, "scenario", "", "explicit scenario id, overriding registry resolution")
	return cmd
}
