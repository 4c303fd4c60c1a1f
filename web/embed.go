// Package web embeds the browser chat client (dist/).
package web

import (
	"bytes"
	"embed"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"
)

//go:embed all:dist
var distFS embed.FS

// reserved prefixes belong to the API and the chat socket; a miss there is
// a real 404, not a page route.
var reserved = []string{"api/", "ws/"}

// ChatPage serves the chat client. Page routes such as /sessions/{id} get
// index.html so the client can reattach from the URL; missing assets and
// reserved prefixes answer 404.
func ChatPage() http.Handler {
	sub, err := fs.Sub(distFS, "dist")
	if err != nil {
		panic("web: dist missing from embed: " + err.Error())
	}
	index, err := fs.ReadFile(sub, "index.html")
	if err != nil {
		panic("web: index.html missing from embed: " + err.Error())
	}
	assets := http.FileServer(http.FS(sub))
	loaded := time.Now()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
		for _, p := range reserved {
			if strings.HasPrefix(name+"/", p) {
				http.NotFound(w, r)
				return
			}
		}

		if name != "" && name != "index.html" {
			if st, err := fs.Stat(sub, name); err == nil && !st.IsDir() {
				w.Header().Set("Cache-Control", "public, max-age=3600")
				assets.ServeHTTP(w, r)
				return
			}
			if path.Ext(name) != "" {
				http.NotFound(w, r)
				return
			}
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		http.ServeContent(w, r, "index.html", loaded, bytes.NewReader(index))
	})
}
