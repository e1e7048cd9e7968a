//go:build windows

package terraform

import (
	"fmt"
	"os"
	"time"
)

// lockDir creates dir/.opslens.lock exclusively; the file is the lock and
// is removed on release.
func lockDir(dir string) (func(), error) {
	path := lockPath(dir)
	deadline := time.Now().Add(lockTimeout)
	for {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
		if err == nil {
			return func() {
				_ = f.Close()
				_ = os.Remove(path)
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%s is locked by another opslens run: %w", dir, err)
		}
		time.Sleep(100 * time.Millisecond)
	}
}
