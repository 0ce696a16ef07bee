//go:build linux

package log

import (
	"os"

	"golang.org/x/sys/unix"
)

// redirectStderr arm64等平台没有dup2，统一用dup3
func redirectStderr(errorFile string) error {
	f, err := os.OpenFile(errorFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return err
	}
	if err := unix.Dup3(int(f.Fd()), int(os.Stderr.Fd()), 0); err != nil {
		return err
	}
	os.Stderr = f
	return nil
}
