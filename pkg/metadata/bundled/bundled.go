// Package bundled ships the service documents compiled into the binary.
package bundled

import (
	"embed"
	"io/fs"

	"github.com/conduit-lang/dynres/pkg/metadata"
)

//go:embed data/*.json
var documents embed.FS

// Source returns a metadata source over the bundled documents. Place it last
// in a store's search order so local directories can override it.
func Source() *metadata.DirSource {
	sub, err := fs.Sub(documents, "data")
	if err != nil {
		panic(err)
	}
	return metadata.NewFSSource("bundled", sub)
}
