package i18n

import (
	"embed"
	"io/fs"
	"os"
)

//go:embed locales/*.json
var embeddedLocales embed.FS

// EmbeddedSource returns the locale documents compiled into the binary.
func EmbeddedSource() fs.FS {
	sub, err := fs.Sub(embeddedLocales, "locales")
	if err != nil {
		panic(err)
	}
	return sub
}

// Source returns dir as a locale source, or the embedded documents when dir is empty.
func Source(dir string) fs.FS {
	if dir == "" {
		return EmbeddedSource()
	}
	return os.DirFS(dir)
}
