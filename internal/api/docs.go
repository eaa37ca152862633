package api

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
)

//go:embed static/openapi.yaml
var docsFS embed.FS

type docRoute struct {
	Method  string
	Path    string
	Summary string
}

var docRoutes = []docRoute{
	{http.MethodGet, "/api/breadcrumbs", "Trail for a request path, with rendered markup and JSON-LD"},
	{http.MethodGet, "/api/breadcrumbs/page", "Trail built from a page's parent chain"},
	{http.MethodGet, "/api/breadcrumbs/category/{slug}", "Trail built from a category's parent chain"},
	{http.MethodGet, "/api/breadcrumbs/preview", "Sample trail rendered with optional setting overrides"},
	{http.MethodGet, "/api/settings", "Current display settings"},
	{http.MethodPost, "/api/settings", "Replace display settings from a full form submission"},
	{http.MethodGet, "/api/settings/fields", "Settings field table"},
	{http.MethodPost, "/api/cache/clear", "Delete cached probe results and scraped titles"},
	{http.MethodGet, "/metrics", "Prometheus metrics"},
}

var docsTemplate = template.Must(template.New("docs").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8"/>
  <title>KSPB Breadcrumbs API</title>
  <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui.css" />
  <style>
    body { margin: 0; font-family: sans-serif; background: #fafafa; }
    header { padding: 16px 24px; border-bottom: 1px solid #ddd; }
    table { border-collapse: collapse; margin-top: 8px; }
    td { padding: 2px 12px 2px 0; }
    code { color: #1976d2; }
  </style>
</head>
<body>
<header>
  <h1>KSPB Breadcrumbs {{.Version}}</h1>
  <p>Resolves breadcrumb trails for site paths. Titles come from site metadata, cached probes and scraped page titles.</p>
  <table>
  {{- range .Routes}}
    <tr><td><strong>{{.Method}}</strong></td><td><code>{{.Path}}</code></td><td>{{.Summary}}</td></tr>
  {{- end}}
  </table>
</header>
<div id="swagger-ui"></div>
<script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
<script>
window.onload = () => {
  SwaggerUIBundle({ url: '/openapi.yaml', dom_id: '#swagger-ui', deepLinking: true });
};
</script>
</body>
</html>`))

func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	http.ServeFileFS(w, r, docsFS, "static/openapi.yaml")
}

func (s *Server) handleDocs(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	err := docsTemplate.Execute(&buf, struct {
		Version string
		Routes  []docRoute
	}{s.version, docRoutes})
	if err != nil {
		http.Error(w, "render docs failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
