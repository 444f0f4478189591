package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mraysmit/apex-sub000/internal/engine"
	"github.com/mraysmit/apex-sub000/internal/telemetry"
)

var (
	configDir string
	verbose   bool
)

// Execute builds and runs the apex root command.
func Execute(ctx context.Context, version, commit string) error {
	return newRootCommand(version, commit).ExecuteContext(ctx)
}

func newRootCommand(version, commit string) *cobra.Command {
	root := &cobra.Command{
		Use:   "apex",
		Short: "Declarative rules-and-enrichment engine",
		Long: `apex loads a tree of dataset/rule-config/scenario YAML files, routes
a data type to the scenario that governs it, and evaluates records
against the resulting enrichment pipeline and rule set.`,
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVarP(&configDir, "config-dir", "c", ".", "root directory of dataset/rule-config/scenario YAML files")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newLoadCommand())
	root.AddCommand(newRouteCommand())
	root.AddCommand(newEvaluateCommand())

	return root
}

// newEngine builds an Engine rooted at configDir with a logger honoring
// the --verbose flag, shared by every subcommand.
func newEngine() (*engine.Engine, error) {
	z, err := newZapLogger()
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config-dir: %w", err)
	}
	return engine.New(abs, engine.WithLogger(telemetry.NewZapLogger(z)))
}

func newZapLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
