// Package cmd provides the taxctl commands.
package cmd

import (
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
)

// NewRootCmd builds the taxctl command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "taxctl",
		Short: "Offline tools for the taxbridge engine",
		Long: `taxctl runs the tax engine without the HTTP surface.

Examples:
  taxctl reconcile --request cart.json --rates rates.json
  taxctl allocate --total 10.00 --weights 50,50
  taxctl token --subject storefront --ttl 1h
  taxctl migrate`,
		SilenceUsage: true,
	}
	root.PersistentFlags().String("log-level", "warn", "log level")

	root.AddCommand(newReconcileCmd())
	root.AddCommand(newAllocateCmd())
	root.AddCommand(newTokenCmd())
	root.AddCommand(newMigrateCmd())
	return root
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
