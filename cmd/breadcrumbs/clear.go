package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"breadcrumbs/internal/cache"
)

var clearCmd = &cobra.Command{
	Use:   "clear-cache",
	Short: "Delete every cached probe status and scraped title",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		deleted, err := cache.ClearAll(cmd.Context(), a.store)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %d cache entries\n", deleted)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(clearCmd)
}
