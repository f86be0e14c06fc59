//go:build !unix

package lock

import "os"

func flock(_ *os.File, op int) error {
	switch op &^ NonBlocking {
	case Shared, Exclusive, Unlock:
		return ErrUnsupported
	}
	return ErrInvalidOperation
}
