package server

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/YiuTerran/go-bidi/base/log"
	"github.com/YiuTerran/go-bidi/module"
)

/**  一般server的实现，加载所有Module
  *  @author tryao
  *  @date 2022/03/21 11:06
**/

var (
	closeChannel = make(chan os.Signal, 1)
)

// CloseServer 手动关闭服务
func CloseServer() {
	select {
	case closeChannel <- os.Interrupt:
	default:
	}
}

// StaticRun 按顺序加载模块，收到退出信号后逆序销毁
// beforeClose是在所有模块销毁前执行的
func StaticRun(mods []module.Module, beforeClose func()) error {
	log.Info("Server starting up...")
	if err := loadModules(mods); err != nil {
		return err
	}
	signal.Notify(closeChannel, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(closeChannel)
	sig := <-closeChannel
	log.Info("receive signal %v", sig)
	if beforeClose != nil {
		beforeClose()
	}
	destroyAll()
	log.Info("Server closing down...")
	log.Flush()
	return nil
}
