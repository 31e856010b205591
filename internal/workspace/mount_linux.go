//go:build linux

package workspace

import "golang.org/x/sys/unix"

func bindMount(source, target string) error {
	return unix.Mount(source, target, "", unix.MS_BIND, "")
}

func unmountPath(target string) error {
	return unix.Unmount(target, 0)
}
