//go:build !unix && !windows

package fileopen

import (
	"errors"
	"fmt"
)

func OSOpen(req Request) (Handle, error) {
	return InvalidHandle, fmt.Errorf("open %s: %w", req.Path, errors.ErrUnsupported)
}

func Close(Handle) error {
	return errors.ErrUnsupported
}
