package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	pkgconfig "github.com/Skotchmaster/cartify/pkg/config"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:           "cartify",
	Short:         "Cart and checkout service",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		pkgconfig.LoadDotEnv(envFile, ".env")
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
