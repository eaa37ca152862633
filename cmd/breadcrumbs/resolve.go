package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"breadcrumbs/internal/render"
	"breadcrumbs/internal/schema"
	"breadcrumbs/internal/visibility"
	"breadcrumbs/pkg/types"
)

var (
	resolveDocTitle string
	resolveKind     string
	resolvePostType string
	resolveFormat   string
	resolveNoScrape bool
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <path>",
	Short: "Resolve and print the trail for a request path",
	Args:  cobra.ExactArgs(1),
	RunE:  runResolve,
}

func init() {
	resolveCmd.Flags().StringVar(&resolveDocTitle, "document-title", "", "Host document title for the current page")
	resolveCmd.Flags().StringVar(&resolveKind, "kind", "", "Page kind (singular, category, tag, ...)")
	resolveCmd.Flags().StringVar(&resolvePostType, "post-type", "", "Content type of the page")
	resolveCmd.Flags().StringVar(&resolveFormat, "format", "json", "Output format: json, html or jsonld")
	resolveCmd.Flags().BoolVar(&resolveNoScrape, "no-scrape", false, "Disable probing and title scraping")
	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	settings := a.cfg.Settings.Clone()
	if resolveNoScrape {
		settings.EnableScraping = false
	}
	r, err := a.build(settings)
	if err != nil {
		return err
	}

	trail := r.Resolve(cmd.Context(), types.ResolveRequest{
		Path:          args[0],
		DocumentTitle: resolveDocTitle,
		Kind:          visibility.ParseKind(resolveKind),
		PostType:      resolvePostType,
	})

	out := cmd.OutOrStdout()
	switch resolveFormat {
	case "html":
		_, err = fmt.Fprintln(out, render.String(trail, render.OptionsFrom(settings)))
	case "jsonld":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		err = enc.Encode(schema.FromTrail(trail))
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		err = enc.Encode(trail)
	default:
		return fmt.Errorf("unknown format %q", resolveFormat)
	}
	return err
}
