package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	app := &App{}
	err := rootCommand(app).Execute()
	app.Close()
	if err != nil {
		os.Exit(1)
	}
}

func rootCommand(app *App) *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:          "platewatch",
		Short:        "License plate detection and registry reconciliation",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.init(configPath)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")

	rootCmd.AddCommand(
		detectCommand(app),
		serveCommand(app),
		registryCommand(app),
	)
	return rootCmd
}
