//go:build windows

package log

import (
	"os"

	"golang.org/x/sys/windows"
)

// redirectStderr 将标准错误句柄重定向到文件，runtime打印的panic堆栈也会写进去
func redirectStderr(errorFile string) error {
	f, err := os.OpenFile(errorFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return err
	}
	if err := windows.SetStdHandle(windows.STD_ERROR_HANDLE, windows.Handle(f.Fd())); err != nil {
		return err
	}
	os.Stderr = f
	return nil
}
