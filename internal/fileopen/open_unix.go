//go:build unix

package fileopen

import (
	"os"

	"golang.org/x/sys/unix"
)

// OSOpen maps the Win32 style request onto open(2). Share mode, security
// attributes and the template handle have no equivalent and are ignored.
func OSOpen(req Request) (Handle, error) {
	flags := unix.O_CLOEXEC
	switch {
	case req.Access&GenericRead != 0 && req.Access&GenericWrite != 0:
		flags |= unix.O_RDWR
	case req.Access&GenericWrite != 0:
		flags |= unix.O_WRONLY
	default:
		flags |= unix.O_RDONLY
	}
	switch req.Disposition {
	case CreateNew:
		flags |= unix.O_CREAT | unix.O_EXCL
	case CreateAlways:
		flags |= unix.O_CREAT | unix.O_TRUNC
	case OpenAlways:
		flags |= unix.O_CREAT
	case TruncateExisting:
		flags |= unix.O_TRUNC
	}
	fd, err := unix.Open(req.Path, flags, 0o644)
	if err != nil {
		return InvalidHandle, &os.PathError{Op: "open", Path: req.Path, Err: err}
	}
	return Handle(fd), nil
}

func Close(h Handle) error {
	return unix.Close(int(h))
}
