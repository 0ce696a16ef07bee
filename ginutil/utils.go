package ginutil

import (
	"net/http"

	"github.com/YiuTerran/go-bidi/base/log"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/lo"
)

/**
  *  @author tryao
  *  @date 2022/07/25 15:58
**/

// InitRouter 创建一个激活常用配置的router
// prometheus由调用方按需EnableMetrics
func InitRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(AccessLogHandler("/metrics"))
	router.Use(RecoveryHandler())
	EnableLogSwitch(router)
	return router
}

// EnableMetrics 在/metrics暴露gatherer，nil时使用默认的registry
func EnableMetrics(router gin.IRoutes, gatherer prometheus.Gatherer) {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
}

// EnableLogSwitch 运行时调整日志级别，PUT /log/level/debug
func EnableLogSwitch(router gin.IRoutes) {
	router.PUT("/log/level/:level", func(c *gin.Context) {
		level := log.Level(c.Param("level"))
		valid := []log.Level{log.LevelDebug, log.LevelInfo, log.LevelWarn, log.LevelError}
		if !lo.Contains(valid, level) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown level " + string(level)})
			return
		}
		log.ChangeLogLevel(level)
		log.Info("log level changed to %s", level)
		c.JSON(http.StatusOK, gin.H{"level": level})
	})
}
