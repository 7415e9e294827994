package web

import (
	"net/http"
	"path"
	"path/filepath"
	"strings"
)

// StaticHandler serves the presentation files in dir. Unknown paths outside
// /api/ get index.html so client-side routes resolve.
func StaticHandler(dir string) http.Handler {
	root := http.Dir(dir)
	files := http.FileServer(root)
	index := filepath.Join(dir, "index.html")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			http.NotFound(w, r)
			return
		}
		f, err := root.Open(path.Clean("/" + r.URL.Path))
		if err != nil {
			http.ServeFile(w, r, index)
			return
		}
		f.Close()
		files.ServeHTTP(w, r)
	})
}
