package process

import (
	"fmt"
	"os"
	"path/filepath"
)

// CheckExecutable verifies that path is an absolute path to a regular file
// with the owner execute bit set. Failures wrap ErrNotExecutable.
func CheckExecutable(path string) error {
	notExecutable := func(op string, cause any) error {
		return &SpawnError{Path: path, Op: op, Err: fmt.Errorf("%w: %v", ErrNotExecutable, cause)}
	}

	if !filepath.IsAbs(path) {
		return notExecutable("check", "path is not absolute")
	}

	fi, err := os.Stat(path)
	if err != nil {
		return notExecutable("stat", err)
	}
	if !fi.Mode().IsRegular() {
		return notExecutable("check", "not a regular file")
	}
	if fi.Mode().Perm()&0o100 == 0 {
		return notExecutable("check", "owner execute permission not set")
	}
	return nil
}
