package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/YiuTerran/go-bidi/base/log"
	"github.com/YiuTerran/go-bidi/base/util/fsutil"
	"github.com/YiuTerran/go-bidi/network"
	"github.com/fsnotify/fsnotify"
)

// SafeConfig 默认情况下viper读入配置并不是并发安全的，这里简单的包装以下
type SafeConfig struct {
	lock sync.RWMutex
	c    *Config
}

func (sc *SafeConfig) Load() *Config {
	sc.lock.RLock()
	defer sc.lock.RUnlock()
	return sc.c
}

func (sc *SafeConfig) Store(c *Config) {
	sc.lock.Lock()
	sc.c = c
	sc.lock.Unlock()
}

// Watch 读取配置并监听文件变化
// 变化时默认处理日志等级，如果有其他回调也可以在调用的时候传入
// 只有解析成功才会替换
func Watch(path string, cbs ...func(*Config)) (*SafeConfig, error) {
	if path == "" {
		path = fsutil.FindConfig(DefaultName)
	}
	if path == "" {
		return nil, fmt.Errorf("%w: no config file to watch", network.ErrInvalidArgument)
	}
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	sc := &SafeConfig{c: c}

	vp := newViper()
	vp.SetConfigFile(path)
	if err = vp.ReadInConfig(); err != nil {
		return nil, err
	}
	vp.OnConfigChange(func(e fsnotify.Event) {
		nc, err := Load(path)
		if err != nil {
			log.Error("fail to reload config %s: %v", e.Name, err)
			return
		}
		old := sc.Load()
		sc.Store(nc)
		if !strings.EqualFold(old.Log.Level, nc.Log.Level) {
			log.ChangeLogLevel(log.Level(strings.ToLower(nc.Log.Level)))
		}
		for _, cb := range cbs {
			cb(nc)
		}
	})
	vp.WatchConfig()
	return sc, nil
}
