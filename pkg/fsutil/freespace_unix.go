//go:build linux || darwin

package fsutil

import "syscall"

// DefaultFreeSpace is the default FreeSpaceFunc on unix-like hosts, backed by
// statfs. Device targets typically inject their own implementation (a flash
// filesystem driver rarely exposes statfs); this default exists so the CLI
// binaries and tests have something real to call.
func DefaultFreeSpace(path string) (free, total uint64, err error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0, 0, err
	}
	free = uint64(stat.Bavail) * uint64(stat.Bsize)
	total = uint64(stat.Blocks) * uint64(stat.Bsize)
	return free, total, nil
}
