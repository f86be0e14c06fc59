//go:build unix

package lock

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

func flock(f *os.File, op int) error {
	var how int
	switch op &^ NonBlocking {
	case Shared:
		how = unix.LOCK_SH
	case Exclusive:
		how = unix.LOCK_EX
	case Unlock:
		how = unix.LOCK_UN
	default:
		return ErrInvalidOperation
	}
	if op&NonBlocking != 0 {
		how |= unix.LOCK_NB
	}

	for {
		err := unix.Flock(int(f.Fd()), how)
		switch {
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EWOULDBLOCK):
			return ErrWouldBlock
		}
		return err
	}
}
