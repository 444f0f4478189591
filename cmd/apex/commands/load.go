package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLoadCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load and validate every YAML config file under --config-dir",
		Long: `Walks --config-dir for *.yaml/*.yml files, classifies and validates
each one, and reports its type and version-instance id. Use this to sanity-check a
config tree before routing or evaluating against it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEngine()
			if err != nil {
				return err
			}

			paths, err := walkYAMLFiles(configDir)
			if err != nil {
				return err
			}

			failed := 0
			for _, rel := range paths {
				handle, err := e.LoadConfig(rel)
				if err != nil {
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "FAIL  %-40s %v\n", rel, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "OK    %-40s type=%-18s version=%s\n", rel, handle.Type, handle.VersionInstance)
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d config files failed to load", failed, len(paths))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d config files loaded\n", len(paths))
			return nil
		},
	}
	return cmd
}
