package server

import (
	"crypto/tls"
	"time"

	"github.com/YiuTerran/go-bidi/network"
)

const (
	DefaultKeepalive    = 30 * time.Second
	DefaultLoginTimeout = 10 * time.Second
	DefaultSendTimeout  = 10 * time.Second
	// DefaultBroadcastFanout 广播时同时写入的Remote数量上限
	DefaultBroadcastFanout = 64
)

type Option func(*Server)

// WithHost 监听的地址，默认所有网卡
func WithHost(host string) Option {
	return func(s *Server) {
		s.host = host
	}
}

// WithKeepalive 心跳广播间隔，<=0关闭心跳
func WithKeepalive(d time.Duration) Option {
	return func(s *Server) {
		s.keepalive = d
	}
}

func WithTLS(conf *tls.Config) Option {
	return func(s *Server) {
		s.opts.TLS = conf
	}
}

func WithCodec(codec network.Codec) Option {
	return func(s *Server) {
		s.opts.Codec = codec
	}
}

// WithMaxConnNum 最大连接数（含握手中的），<=0不限制
func WithMaxConnNum(n int) Option {
	return func(s *Server) {
		s.maxConnNum = n
	}
}

// WithLoginTimeout 新连接必须在这个时间内发送首包
func WithLoginTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.loginTimeout = d
	}
}

// WithSendTimeout 单次写入的超时，广播时一个不可达的Remote最多占用这么久
func WithSendTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.opts.WriteTimeout = d
	}
}

// WithMaxHandlers 每个Remote同时执行的handler上限，<=0不限制
func WithMaxHandlers(n int) Option {
	return func(s *Server) {
		s.maxHandlers = n
	}
}

func WithObserver(o network.Observer) Option {
	return func(s *Server) {
		s.observer = o
	}
}

// WithOnClientRegistered Remote登录成功后调用
func WithOnClientRegistered(f func(r *Remote)) Option {
	return func(s *Server) {
		s.onRegistered = f
	}
}

// WithOnClientRemoved Remote因为读写失败或被替换而移除后调用，每个Remote最多一次
func WithOnClientRemoved(f func(id string, r *Remote)) Option {
	return func(s *Server) {
		s.onRemoved = f
	}
}

// WithAutoTerminate 与客户端配置保持一致，服务端没有重连预算，只记录日志
func WithAutoTerminate(enable bool) Option {
	return func(s *Server) {
		s.autoTerminate = enable
	}
}

// WithBroadcastFanout 广播时并发写入的上限，<=0不限制
func WithBroadcastFanout(n int) Option {
	return func(s *Server) {
		s.fanout = n
	}
}
