// Command breadcrumbs serves and inspects breadcrumb trails for a site.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:           "breadcrumbs",
	Short:         "Breadcrumb trail resolver",
	Long:          "Resolves breadcrumb trails from request paths, verifies ancestor links and scrapes titles, and renders navigation markup with JSON-LD.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML configuration (defaults apply when empty)")
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
