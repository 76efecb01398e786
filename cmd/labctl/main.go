// Command labctl runs the lab analysis engine against JSON files from the shell.
package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lab-analysis-engine/internal/service"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.WarnLevel)

	app := &cli{
		analysis: service.NewAnalysisService(logger, nil, nil),
		logger:   logger,
	}

	rootCmd := &cobra.Command{
		Use:          "labctl",
		Short:        "Categorize and evaluate lab results",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if app.verbose {
				logger.SetLevel(logrus.DebugLevel)
			}
			return validateOutput(app.output)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&app.output, "output", "o", outputJSON, "output format: json or yaml")
	rootCmd.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "log debug output to stderr")

	rootCmd.AddCommand(app.classifyCmd())
	rootCmd.AddCommand(app.evaluateCmd())
	rootCmd.AddCommand(app.viewCmd())
	rootCmd.AddCommand(app.exportCmd())
	rootCmd.AddCommand(app.categoriesCmd())
	rootCmd.AddCommand(app.mcpCmd())

	return rootCmd
}
