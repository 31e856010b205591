//go:build !linux

package workspace

import "errors"

// Bind mounts are Linux-only; other platforms always take the symlink
// fallback.
func bindMount(source, target string) error {
	return errors.ErrUnsupported
}

func unmountPath(target string) error {
	return errors.ErrUnsupported
}
