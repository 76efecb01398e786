package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lab-analysis-engine/internal/setup"
)

func (a *cli) mcpCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Manage the desktop client registration of the MCP server",
	}
	cmd.PersistentFlags().StringVar(&configPath, "client-config", "", "client config file (default: platform location)")

	var opts setup.Options
	installCmd := &cobra.Command{
		Use:   "install",
		Short: "Register mcp-server-lite with the desktop client",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ConfigPath = configPath
			path, err := setup.Register(opts)
			if err != nil {
				return err
			}
			a.logger.WithField("config_path", path).Debug("MCP server registered")
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s in %s\n", setup.ServerName, path)
			return nil
		},
	}
	installCmd.Flags().StringVar(&opts.BinaryPath, "binary", "", "path to mcp-server-lite (default: search PATH)")
	installCmd.Flags().StringVar(&opts.DataDir, "data-dir", "", "data directory for the server")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the registration status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := setup.GetStatus(configPath)
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), status)
		},
	}

	cmd.AddCommand(installCmd, statusCmd)
	return cmd
}
