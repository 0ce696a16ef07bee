package fsutil

import (
	"os"
	"path/filepath"

	"github.com/YiuTerran/go-bidi/base/log"
)

/**
  *  @author tryao
  *  @date 2022/03/21 15:17
**/
const (
	ConfigDir = "_config"
)

// FindPathFrom 从某个目录开始逐级向上查找name指向的文件，找不到返回空
func FindPathFrom(root string, name string) string {
	if root == "" {
		return ""
	}
	dir := root
	prev := ""
	x := filepath.Join(dir, name)
	for !Exists(x) {
		if dir == prev {
			log.Debug("can't find path from %s, it should be named `%s`", root, name)
			return ""
		}
		prev = dir
		dir = filepath.Dir(dir)
		x = filepath.Join(dir, name)
	}
	return x
}

// FindPath 先从工作目录，再从程序所在目录逐层往上找
// 注意：go run的执行文件在临时目录，一般是(/var/folders/)，只能靠工作目录找到
func FindPath(name string) string {
	if wd, err := os.Getwd(); err == nil {
		if p := FindPathFrom(wd, name); p != "" {
			return p
		}
	}
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	return FindPathFrom(filepath.Dir(exe), name)
}

// FindConfig 查找_config目录下的配置文件
func FindConfig(name string) string {
	return FindPath(filepath.Join(ConfigDir, name))
}

func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
