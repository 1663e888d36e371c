//go:build !windows

package main

import (
	"fmt"
	"os"
	"syscall"
)

// reexec replaces the current process with a fresh copy of the executable,
// keeping arguments and environment
func reexec() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate executable: %w", err)
	}

	if err := syscall.Exec(exe, os.Args, os.Environ()); err != nil {
		return fmt.Errorf("failed to re-exec %s: %w", exe, err)
	}
	return nil
}
