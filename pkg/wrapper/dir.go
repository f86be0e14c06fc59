package wrapper

import (
	"github.com/marmos91/dittostream/pkg/stream"
)

// Dir is an open directory listing returned by Wrapper.OpenDir.
type Dir struct {
	listing *stream.Listing
}

// Read returns the next entry name, or false past the last entry.
func (d *Dir) Read() (string, bool) {
	return d.listing.Read()
}

// Rewind moves back to the first entry without listing again.
func (d *Dir) Rewind() bool {
	d.listing.Rewind()
	return true
}

// Close releases the listing.
func (d *Dir) Close() bool {
	d.listing.Close()
	return true
}
