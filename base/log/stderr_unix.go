//go:build !windows && !linux

package log

import (
	"os"

	"golang.org/x/sys/unix"
)

// redirectStderr 将fd 2重定向到文件，runtime打印的panic堆栈也会写进去
func redirectStderr(errorFile string) error {
	f, err := os.OpenFile(errorFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return err
	}
	if err := unix.Dup2(int(f.Fd()), int(os.Stderr.Fd())); err != nil {
		return err
	}
	os.Stderr = f
	return nil
}
