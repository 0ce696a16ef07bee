package ginutil

/**  gin日志的一些简单封装
  *  @author tryao
  *  @date 2022/03/22 14:50
**/

import (
	"errors"
	"net"
	"net/http"
	"net/http/httputil"
	"os"
	"strings"
	"time"

	"github.com/YiuTerran/go-bidi/base/log"
	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

// AccessLogHandler debug级别的访问日志，skipPath中的路径不记录
func AccessLogHandler(skipPath ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		// some evil middlewares modify this values
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery
		c.Next()

		if lo.Contains(skipPath, path) {
			return
		}
		if len(c.Errors) > 0 {
			for _, e := range c.Errors.Errors() {
				log.Error("%s %s: %s", c.Request.Method, path, e)
			}
			return
		}
		log.Debug("%s %s Q:%s ST:%d IP:%s UA:%s LAT:%s", c.Request.Method, path, query,
			c.Writer.Status(), c.ClientIP(), c.Request.UserAgent(), time.Since(start))
	}
}

func RecoveryHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				// Check for a broken connection, as it is not really a
				// condition that warrants a panic stack trace.
				var brokenPipe bool
				var ne *net.OpError
				if e, ok := err.(error); ok && errors.As(e, &ne) {
					var se *os.SyscallError
					if errors.As(ne.Err, &se) {
						msg := strings.ToLower(se.Error())
						brokenPipe = strings.Contains(msg, "broken pipe") || strings.Contains(msg, "connection reset by peer")
					}
				}

				httpRequest, _ := httputil.DumpRequest(c.Request, false)
				if brokenPipe {
					log.Error("panic when request %s, error:%v, req:%s", c.Request.URL.Path, err, httpRequest)
					// If the connection is dead, we can't write a status to it.
					_ = c.Error(err.(error)) // nolint: err check
					c.Abort()
					return
				}

				log.PanicStack("gin panic, request: "+string(httpRequest), err)
				c.AbortWithStatus(http.StatusInternalServerError)
			}
		}()
		c.Next()
	}
}
