package stream

import (
	"context"
	"errors"
	"io/fs"
	"strconv"
	"time"

	"github.com/marmos91/dittostream/pkg/backend"
)

// Stat flags.
const (
	StatLink = 1

	// StatQuiet asks hosts not to report a missing path.
	StatQuiet = 2

	// StatIgnoreSize skips the size lookup; the caller supplies its own.
	StatIgnoreSize = 8
)

// File type bits of Stat.Mode.
const (
	ModeDir  = 0o040000
	ModeFile = 0o100000

	modeTypeMask = 0o170000
)

// Stat is a fully populated stat record. Fields the backend cannot provide
// keep their defaults: zero, or -1 for the block fields.
type Stat struct {
	Dev     int64
	Ino     int64
	Mode    int64
	Nlink   int64
	UID     int64
	GID     int64
	Rdev    int64
	Size    int64
	Atime   int64
	Mtime   int64
	Ctime   int64
	Blksize int64
	Blocks  int64
}

// Values returns the record in positional order: dev, ino, mode, nlink,
// uid, gid, rdev, size, atime, mtime, ctime, blksize, blocks.
func (s *Stat) Values() [13]int64 {
	return [13]int64{
		s.Dev, s.Ino, s.Mode, s.Nlink, s.UID, s.GID, s.Rdev,
		s.Size, s.Atime, s.Mtime, s.Ctime, s.Blksize, s.Blocks,
	}
}

// IsDir reports whether the record describes a directory.
func (s *Stat) IsDir() bool {
	return s.Mode&modeTypeMask == ModeDir
}

// FileMode converts Mode to an fs.FileMode.
func (s *Stat) FileMode() fs.FileMode {
	mode := fs.FileMode(s.Mode & 0o777)
	if s.IsDir() {
		mode |= fs.ModeDir
	}
	return mode
}

func (f *Filesystem) newStat() *Stat {
	return &Stat{
		UID:     f.uid,
		GID:     f.gid,
		Atime:   f.now().Unix(),
		Blksize: -1,
		Blocks:  -1,
	}
}

// Stat builds the stat record of path.
//
// Required fields missing from the base metadata are requested one by one.
// A field the backend answers with backend.ErrNotSupported is disabled on the
// binding for good and never requested again.
func (f *Filesystem) Stat(ctx context.Context, path string, flags int) (*Stat, error) {
	const op = "stat"

	p, err := f.resolve(op, path)
	if err != nil {
		return nil, err
	}

	m, err := f.lookup(ctx, p)
	if err != nil {
		return nil, wrap(op, path, err)
	}
	if err := f.complete(ctx, p, m, flags); err != nil {
		return nil, wrap(op, path, err)
	}

	st := f.newStat()
	st.Mode = f.mode(m.Kind, m.Visibility)
	if m.Size != nil {
		st.Size = *m.Size
	}
	if m.Timestamp != nil {
		st.Mtime = m.Timestamp.Unix()
		st.Ctime = st.Mtime
	}
	return st, nil
}

// complete fills the required fields m lacks.
func (f *Filesystem) complete(ctx context.Context, path string, m *backend.Metadata, flags int) error {
	b := f.backend()
	caps := f.binding.Capabilities

	for _, field := range f.binding.Config.Metadata {
		if !caps.Supports(field) {
			continue
		}

		var err error
		switch field {
		case backend.FieldSize:
			if flags&StatIgnoreSize != 0 || m.Size != nil || m.IsDir() || path == "" {
				continue
			}
			var size int64
			if size, err = b.GetSize(ctx, path); err == nil {
				m.Size = &size
			}
		case backend.FieldTimestamp:
			if m.Timestamp != nil || path == "" {
				continue
			}
			var ts time.Time
			if ts, err = b.GetTimestamp(ctx, path); err == nil {
				m.Timestamp = &ts
			}
		case backend.FieldVisibility:
			if m.Visibility != "" || path == "" {
				continue
			}
			m.Visibility, err = b.GetVisibility(ctx, path)
		default:
			continue
		}

		if errors.Is(err, backend.ErrNotSupported) {
			caps.Disable(field)
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// mode combines the type bits with the configured permission bits. A
// visibility outside the permission table is read as octal bits, and an
// absent one counts as public.
func (f *Filesystem) mode(kind backend.Kind, visibility string) int64 {
	var mode int64 = ModeFile
	if kind == backend.KindDir {
		mode = ModeDir
	}

	if visibility == "" {
		visibility = backend.VisibilityPublic
	}
	if bits, ok := f.binding.Config.Permission(kind, visibility); ok {
		return mode | int64(bits)
	}
	if bits, err := strconv.ParseUint(visibility, 8, 32); err == nil {
		return mode | int64(bits)
	}
	return mode
}
