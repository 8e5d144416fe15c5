package api

import (
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"

	"veriframe/internal/verify"
)

// pageServer renders the embedded upload UI.
type pageServer struct {
	tmpl *template.Template
	mgr  *verify.Manager
}

func newPageServer(templatesFS fs.FS, mgr *verify.Manager) *pageServer {
	tmpl, err := template.ParseFS(templatesFS, "*.html")
	if err != nil {
		slog.Error("parse templates", "error", err)
		tmpl = template.New("empty")
	}
	return &pageServer{tmpl: tmpl, mgr: mgr}
}

type indexData struct {
	Busy bool
}

func (ps *pageServer) indexPage(w http.ResponseWriter, r *http.Request) {
	data := indexData{Busy: ps.mgr.Active() != nil}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := ps.tmpl.ExecuteTemplate(w, "index.html", data); err != nil {
		slog.Error("render index", "error", err)
	}
}
