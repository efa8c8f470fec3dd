//go:build freebsd || openbsd || netbsd || dragonfly

package sysmem

import "golang.org/x/sys/unix"

func totalSystemMemory() (uint64, bool) {
	for _, name := range []string{"hw.physmem", "hw.realmem"} {
		if mem, err := unix.SysctlUint64(name); err == nil && mem > 0 {
			return mem, true
		}
	}
	return 0, false
}

func containerLimit() (uint64, bool) {
	return 0, false
}
