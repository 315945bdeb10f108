package content

import (
	"embed"
	"io/fs"
)

//go:embed events/*.json patterns.json
var embedded embed.FS

// Events returns the default event catalog rooted at its directory.
func Events() fs.FS {
	sub, err := fs.Sub(embedded, "events")
	if err != nil {
		panic(err)
	}
	return sub
}

// Patterns returns the default story pattern catalog.
func Patterns() []byte {
	b, err := embedded.ReadFile("patterns.json")
	if err != nil {
		panic(err)
	}
	return b
}
