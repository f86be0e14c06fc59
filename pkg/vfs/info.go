package vfs

import (
	"io/fs"
	"path"
	"time"

	"github.com/marmos91/dittostream/pkg/stream"
)

// fileInfo adapts a stream stat record to fs.FileInfo.
type fileInfo struct {
	name string
	st   *stream.Stat
}

var _ fs.FileInfo = (*fileInfo)(nil)

func newFileInfo(name string, st *stream.Stat) *fileInfo {
	base := path.Base("/" + name)
	if base == "/" {
		base = "."
	}
	return &fileInfo{name: base, st: st}
}

func (fi *fileInfo) Name() string       { return fi.name }
func (fi *fileInfo) Size() int64        { return fi.st.Size }
func (fi *fileInfo) Mode() fs.FileMode  { return fi.st.FileMode() }
func (fi *fileInfo) ModTime() time.Time { return time.Unix(fi.st.Mtime, 0) }
func (fi *fileInfo) IsDir() bool        { return fi.st.IsDir() }

// Sys returns the underlying *stream.Stat.
func (fi *fileInfo) Sys() any { return fi.st }
