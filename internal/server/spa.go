package server

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// handleClient serves the bundled map client from dir. Paths that are not a
// real file fall back to index.html so the client can route on its own;
// unknown API paths still 404.
func handleClient(dir string) http.HandlerFunc {
	fileServer := http.FileServer(http.Dir(dir))

	return func(w http.ResponseWriter, r *http.Request) {
		clean := path.Clean("/" + r.URL.Path)
		if strings.HasPrefix(clean, "/api/") || strings.HasPrefix(clean, "/ws/") {
			writeError(w, http.StatusNotFound, "not found")
			return
		}

		file := filepath.Join(dir, filepath.FromSlash(clean))
		if info, err := os.Stat(file); err == nil && !info.IsDir() {
			fileServer.ServeHTTP(w, r)
			return
		}

		http.ServeFile(w, r, filepath.Join(dir, "index.html"))
	}
}
