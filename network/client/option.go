package client

import (
	"crypto/tls"
	"time"

	"github.com/YiuTerran/go-bidi/network"
)

const (
	DefaultBackoff     = 5 * time.Second
	DefaultMaxFailures = 30
)

type Option func(*Client)

// Callbacks 连接状态变化的回调，都在会话协程里执行，不要阻塞
type Callbacks struct {
	// OnConnectionProblem 连接或读写失败，即将重连
	OnConnectionProblem func(err error)
	// OnConnectionGood 握手完成，开始读消息
	OnConnectionGood func()
	// OnReconnect 每次登录成功
	OnReconnect func()
}

func WithConnectTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.opts.ConnectTimeout = d
	}
}

func WithWriteTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.opts.WriteTimeout = d
	}
}

// WithIdentity 空id使用随机uuid，空group使用默认分组
func WithIdentity(id, group string) Option {
	return func(c *Client) {
		c.identity = network.NewIdentity(id, group)
	}
}

// WithAutoTerminate 连续失败超过maxFailures次后触发shutdown
func WithAutoTerminate(maxFailures int) Option {
	return func(c *Client) {
		c.autoTerminate = true
		if maxFailures > 0 {
			c.maxFailures = maxFailures
		}
	}
}

// WithShutdown 重连次数耗尽时调用，默认打印日志后退出进程
func WithShutdown(f func(err error)) Option {
	return func(c *Client) {
		c.shutdown = f
	}
}

func WithTLS(conf *tls.Config) Option {
	return func(c *Client) {
		c.opts.TLS = conf
	}
}

// WithBackoff 重连的固定间隔
func WithBackoff(d time.Duration) Option {
	return func(c *Client) {
		c.backoff = d
	}
}

func WithCodec(codec network.Codec) Option {
	return func(c *Client) {
		c.opts.Codec = codec
	}
}

// WithMaxHandlers 同时执行的handler上限，<=0不限制
func WithMaxHandlers(n int) Option {
	return func(c *Client) {
		c.maxHandlers = n
	}
}

func WithObserver(o network.Observer) Option {
	return func(c *Client) {
		c.observer = o
	}
}

func WithCallbacks(cbs Callbacks) Option {
	return func(c *Client) {
		c.callbacks = cbs
	}
}
