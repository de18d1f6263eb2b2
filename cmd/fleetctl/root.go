package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	outputFmt string
	merchant  string
	operator  string
)

var rootCmd = &cobra.Command{
	Use:   "fleetctl",
	Short: "CLI for the fleet registry server",
	Long: `fleetctl manages artifact types, versions and publish assignments on a
fleet registry server, and can ask the same resolve questions the devices ask.

All admin commands are scoped to one merchant, taken from --merchant or the
FLEET_MERCHANT environment variable.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "Registry server URL")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "table", "Output format: table, json, yaml")
	rootCmd.PersistentFlags().StringVarP(&merchant, "merchant", "m", "", "Merchant scope (default: from FLEET_MERCHANT env)")
	rootCmd.PersistentFlags().StringVar(&operator, "operator", "", "Operator identity recorded on writes (default: from FLEET_OPERATOR env)")

	rootCmd.AddCommand(typesCmd)
	rootCmd.AddCommand(versionsCmd)
	rootCmd.AddCommand(publishCmd)
	rootCmd.AddCommand(revokeCmd)
	rootCmd.AddCommand(assignmentsCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(contentsCmd)
	rootCmd.AddCommand(devicesCmd)
}

// resolvedMerchant returns the effective merchant scope.
// Priority: --merchant flag > FLEET_MERCHANT env var.
func resolvedMerchant() string {
	if merchant != "" {
		return merchant
	}
	return os.Getenv("FLEET_MERCHANT")
}

// resolvedOperator returns the effective operator identity.
// Priority: --operator flag > FLEET_OPERATOR env var.
func resolvedOperator() string {
	if operator != "" {
		return operator
	}
	return os.Getenv("FLEET_OPERATOR")
}
