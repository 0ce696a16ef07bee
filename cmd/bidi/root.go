package main

import (
	"fmt"

	"github.com/YiuTerran/go-bidi/base/log"
	"github.com/YiuTerran/go-bidi/config"
	"github.com/YiuTerran/go-bidi/module"
	"github.com/YiuTerran/go-bidi/module/server"
	"github.com/YiuTerran/go-bidi/network"
	"github.com/YiuTerran/go-bidi/network/metrics"
	"github.com/spf13/cobra"
)

const (
	pingID = "PING"
	pongID = "PONG"
)

var (
	cfgFile  string
	logLevel string
	cfg      *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "bidi",
	Short:         "bidirectional tcp messaging demo",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		log.Init(cfg.Log)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file, default _config/bidi.yaml")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level")
	rootCmd.AddCommand(serverCmd, clientCmd)
}

// observer 开启metrics时使用prometheus，否则什么都不做
func observer() network.Observer {
	if cfg.Metrics.Enable {
		return metrics.Default()
	}
	return network.NopObserver{}
}

// run 统一加上metrics模块
func run(mods ...module.Module) error {
	if cfg.Metrics.Enable {
		mods = append([]module.Module{newMetricsModule(cfg.Metrics.Addr)}, mods...)
	}
	return server.StaticRun(mods, nil)
}
