package stream

import (
	"context"
	"strings"
)

// Listing is a snapshot of a directory taken at open time. Later backend
// changes do not show up in it.
type Listing struct {
	names  []string
	cursor int
}

// OpenDir snapshots the direct children of path. A path the backend cannot
// list yields an empty listing, like an empty directory.
func (f *Filesystem) OpenDir(ctx context.Context, path string) (*Listing, error) {
	const op = "opendir"

	p, err := f.resolve(op, path)
	if err != nil {
		return nil, err
	}

	entries, err := f.backend().ListContents(ctx, p, false)
	if err != nil {
		if IsCode(err, ErrNotFound) {
			return &Listing{}, nil
		}
		return nil, wrap(op, path, err)
	}

	prefix := ""
	if p != "" {
		prefix = p + "/"
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimPrefix(e.Path, prefix))
	}
	return &Listing{names: names}, nil
}

// Read returns the next entry name, or false past the last entry.
func (l *Listing) Read() (string, bool) {
	if l.cursor >= len(l.names) {
		return "", false
	}
	name := l.names[l.cursor]
	l.cursor++
	return name, true
}

// Rewind moves back to the first entry.
func (l *Listing) Rewind() {
	l.cursor = 0
}

// Len returns the number of entries in the snapshot.
func (l *Listing) Len() int {
	return len(l.names)
}

// Close drops the snapshot.
func (l *Listing) Close() {
	l.names = nil
	l.cursor = 0
}
