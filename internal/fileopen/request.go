package fileopen

import (
	"errors"
	"unsafe"
)

// Handle is a platform file handle: a HANDLE on Windows, a descriptor
// elsewhere.
type Handle uintptr

// InvalidHandle mirrors INVALID_HANDLE_VALUE.
const InvalidHandle = ^Handle(0)

var ErrInvalidHandle = errors.New("fileopen: invalid handle")

// Access, share and disposition values use the Win32 encoding on every
// platform.
const (
	GenericRead  uint32 = 0x80000000
	GenericWrite uint32 = 0x40000000

	FileShareRead   uint32 = 0x1
	FileShareWrite  uint32 = 0x2
	FileShareDelete uint32 = 0x4

	CreateNew        uint32 = 1
	CreateAlways     uint32 = 2
	OpenExisting     uint32 = 3
	OpenAlways       uint32 = 4
	TruncateExisting uint32 = 5

	FileAttributeNormal uint32 = 0x80
)

// Request carries the CreateFileW parameter set.
type Request struct {
	Path        string
	Access      uint32
	Share       uint32
	Security    unsafe.Pointer
	Disposition uint32
	Flags       uint32
	Template    Handle
}

// OpenFunc is the open primitive being intercepted. A call fails when it
// returns an error or InvalidHandle.
type OpenFunc func(req Request) (Handle, error)

// ReadOnly is the request an engine issues to read an existing asset.
func ReadOnly(path string) Request {
	return Request{
		Path:        path,
		Access:      GenericRead,
		Share:       FileShareRead,
		Disposition: OpenExisting,
		Flags:       FileAttributeNormal,
	}
}

func failed(h Handle, err error) bool {
	return err != nil || h == InvalidHandle
}
