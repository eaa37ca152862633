package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"breadcrumbs/internal/warmup"
)

var (
	warmFile        string
	warmConcurrency int
)

var warmCmd = &cobra.Command{
	Use:   "warm [path...]",
	Short: "Resolve paths ahead of traffic to fill the status and title caches",
	RunE:  runWarm,
}

func init() {
	warmCmd.Flags().StringVar(&warmFile, "file", "", "File with one request path per line")
	warmCmd.Flags().IntVar(&warmConcurrency, "concurrency", 4, "Paths resolved in parallel")
	rootCmd.AddCommand(warmCmd)
}

func runWarm(cmd *cobra.Command, args []string) error {
	paths := append([]string(nil), args...)
	if warmFile != "" {
		fromFile, err := readPaths(warmFile)
		if err != nil {
			return err
		}
		paths = append(paths, fromFile...)
	}
	if len(paths) == 0 {
		return fmt.Errorf("no paths given")
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	r, err := a.build(a.cfg.Settings)
	if err != nil {
		return err
	}
	results, err := warmup.Run(cmd.Context(), r, paths, warmup.Options{
		Concurrency: warmConcurrency,
		Logger:      a.logger,
	})
	for _, res := range results {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d items\t%s\n", res.Path, res.Items, res.Elapsed.Round(time.Millisecond))
	}
	return err
}

func readPaths(path string) ([]string, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open paths file: %w", err)
	}
	defer fh.Close()

	var paths []string
	sc := bufio.NewScanner(fh)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		paths = append(paths, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read paths file: %w", err)
	}
	return paths, nil
}
