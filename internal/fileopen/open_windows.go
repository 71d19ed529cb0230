//go:build windows

package fileopen

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// OSOpen calls CreateFileW.
func OSOpen(req Request) (Handle, error) {
	name, err := windows.UTF16PtrFromString(req.Path)
	if err != nil {
		return InvalidHandle, fmt.Errorf("encode path %q: %w", req.Path, err)
	}
	h, err := windows.CreateFile(
		name,
		req.Access,
		req.Share,
		(*windows.SecurityAttributes)(req.Security),
		req.Disposition,
		req.Flags,
		windows.Handle(req.Template),
	)
	if err != nil {
		return InvalidHandle, fmt.Errorf("CreateFile %s: %w", req.Path, err)
	}
	return Handle(h), nil
}

func Close(h Handle) error {
	return windows.CloseHandle(windows.Handle(h))
}
