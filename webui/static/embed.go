// Package static embeds the upload page served at the web UI root.
package static

import (
	"embed"
	"io/fs"
)

//go:embed index.html
var StaticFS embed.FS

// GetFS returns the embedded filesystem.
func GetFS() fs.FS {
	return StaticFS
}

// ReadFile reads a file from the embedded filesystem.
func ReadFile(name string) ([]byte, error) {
	return StaticFS.ReadFile(name)
}
