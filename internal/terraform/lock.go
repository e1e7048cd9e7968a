package terraform

import (
	"path/filepath"
	"time"
)

// LockFile is created inside the output directory while files are written.
const LockFile = ".opslens.lock"

var lockTimeout = 2 * time.Second

func lockPath(dir string) string {
	return filepath.Join(dir, LockFile)
}
