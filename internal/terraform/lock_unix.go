//go:build !windows

package terraform

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// lockDir takes an exclusive flock on dir/.opslens.lock so two runs do not
// interleave writes into one output directory. It polls every 100ms and
// gives up after lockTimeout.
func lockDir(dir string) (func(), error) {
	path := lockPath(dir)
	fd, err := unix.Open(path, unix.O_CREAT|unix.O_RDWR|unix.O_CLOEXEC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	deadline := time.Now().Add(lockTimeout)
	for {
		err = unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return func() {
				_ = unix.Flock(fd, unix.LOCK_UN)
				_ = unix.Close(fd)
			}, nil
		}
		if time.Now().After(deadline) {
			_ = unix.Close(fd)
			return nil, fmt.Errorf("%s is locked by another opslens run: %w", dir, err)
		}
		time.Sleep(100 * time.Millisecond)
	}
}
