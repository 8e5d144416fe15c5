// Package web carries the upload UI compiled into the binary: the page
// templates and the static assets behind /static/.
package web

import (
	"embed"
	"io/fs"
	"log/slog"
)

//go:embed templates static
var content embed.FS

// Templates returns the filesystem of page templates.
func Templates() fs.FS {
	return subFS("templates")
}

// Static returns the filesystem served under /static/.
func Static() fs.FS {
	return subFS("static")
}

func subFS(dir string) fs.FS {
	sub, err := fs.Sub(content, dir)
	if err != nil {
		// Only possible if the embed directive and dir disagree.
		slog.Error("web assets", "dir", dir, "error", err)
	}
	return sub
}
