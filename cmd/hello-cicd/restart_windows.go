//go:build windows

package main

import "errors"

func reexec() error {
	return errors.New("auto-reload restart is not supported on windows")
}
