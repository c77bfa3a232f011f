package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func registryCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Manage the plate registry",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "import [registry.csv]",
		Short: "Import a CSV registry into the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := app.plates.ImportRegistry(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d plates from %s\n", n, args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "lookup [plate]",
		Short: "Show the status a detected plate text reconciles to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := app.plates.ReloadRegistry(cmd.Context()); err != nil {
				return err
			}
			res := app.plates.Lookup(args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\tknown=%t\n", res.Plate, res.Status, res.Known)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [plate] [status]",
		Short: "Store a plate status in the database",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := app.plates.SetPlateStatus(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", rec.Plate, rec.Status)
			return nil
		},
	})
	return cmd
}
