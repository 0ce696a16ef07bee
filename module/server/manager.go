package server

import (
	"fmt"
	"sync"

	"github.com/YiuTerran/go-bidi/base/log"
	"github.com/YiuTerran/go-bidi/module"
)

/**
  *  @author tryao
  *  @date 2022/03/21 11:22
**/

type mod struct {
	mi       module.Module
	closeSig chan struct{}
	wg       sync.WaitGroup
}

var (
	mods  []*mod
	names = make(map[string]*mod)
	lock  sync.RWMutex
)

// GetModuleByName 通过名称查找mod，类似spring查找bean
func GetModuleByName(name string) module.Module {
	lock.RLock()
	defer lock.RUnlock()
	m, ok := names[name]
	if !ok {
		return nil
	}
	return m.mi
}

// loadModules 按严格的顺序加载模块，任何一个初始化失败则逆序销毁已加载的
func loadModules(mis []module.Module) error {
	lock.Lock()
	defer lock.Unlock()
	for _, mi := range mis {
		if _, ok := names[mi.Name()]; ok {
			destroyLocked()
			return fmt.Errorf("duplicated module %s", mi.Name())
		}
		if err := mi.OnInit(); err != nil {
			destroyLocked()
			return fmt.Errorf("init module %s: %w", mi.Name(), err)
		}
		m := &mod{mi: mi, closeSig: make(chan struct{}, 1)}
		mods = append(mods, m)
		names[mi.Name()] = m
		m.wg.Add(1)
		go run(m)
		log.Info("module registered: %s", mi.Name())
	}
	return nil
}

func destroyMod(m *mod) {
	defer func() {
		if r := recover(); r != nil {
			log.PanicStack(fmt.Sprintf("panic when destroy module %s", m.mi.Name()), r)
		}
	}()
	m.closeSig <- struct{}{}
	m.wg.Wait()
	m.mi.OnDestroy()
	log.Info("mod destroyed: %s", m.mi.Name())
}

// destroyLocked 按加载的逆序销毁
func destroyLocked() {
	for i := len(mods) - 1; i >= 0; i-- {
		destroyMod(mods[i])
		delete(names, mods[i].mi.Name())
	}
	mods = nil
}

func destroyAll() {
	lock.Lock()
	defer lock.Unlock()
	destroyLocked()
}

func run(m *mod) {
	defer m.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			log.PanicStack(fmt.Sprintf("module %s panic", m.mi.Name()), r)
		}
	}()
	m.mi.Run(m.closeSig)
}
