package worker

import (
	"embed"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

//go:embed static
var dashboardFS embed.FS

// dashboard holds the embedded UI so a browser pointed at the daemon port
// needs no files on disk.
var dashboard fs.FS

func init() {
	sub, err := fs.Sub(dashboardFS, "static")
	if err != nil {
		panic("dashboard assets missing from build: " + err.Error())
	}
	dashboard = sub
}

// assetTypes covers every file type the dashboard ships. Unknown extensions
// fall back to octet-stream rather than guessing.
var assetTypes = map[string]string{
	".html": "text/html; charset=utf-8",
	".css":  "text/css",
	".js":   "application/javascript",
	".svg":  "image/svg+xml",
}

func serveEmbedded(w http.ResponseWriter, name string) {
	content, err := fs.ReadFile(dashboard, name)
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	contentType, ok := assetTypes[path.Ext(name)]
	if !ok {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)

	// The page polls live daemon state; a cached copy is worse than useless.
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")

	_, _ = w.Write(content)
}

// serveIndex serves the dashboard page for / and /dashboard.
func serveIndex(w http.ResponseWriter, _ *http.Request) {
	serveEmbedded(w, "index.html")
}

// serveAssets serves files under /assets/ from the embedded UI.
func serveAssets(w http.ResponseWriter, r *http.Request) {
	serveEmbedded(w, strings.TrimPrefix(r.URL.Path, "/"))
}
