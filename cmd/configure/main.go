package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/carebook/routesheet/cmd/configure/commands"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:   "routesheet-configure",
		Short: "Configuration tool for the route sheet API",
		Long:  "CLI tool for managing CORS and rate limit settings and triggering scheduled runs",
	}

	rootCmd.AddCommand(commands.NewCorsCmd())
	rootCmd.AddCommand(commands.NewRatelimitCmd())
	rootCmd.AddCommand(commands.NewGenerateCmd())
	rootCmd.AddCommand(commands.NewSweepCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
