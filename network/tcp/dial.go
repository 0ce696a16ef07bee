package tcp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/YiuTerran/go-bidi/network"
	"github.com/YiuTerran/go-bidi/network/codec"
)

const (
	DefaultConnectTimeout = 10 * time.Second
)

// Options 连接参数，TLS为nil时使用明文
// 不修改任何进程级别的设置
type Options struct {
	ConnectTimeout time.Duration
	WriteTimeout   time.Duration
	TLS            *tls.Config
	Parser         IParser
	Codec          network.Codec
}

func (o Options) withDefaults() Options {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	if o.Parser == nil {
		o.Parser = NewDefaultParser()
	}
	if o.Codec == nil {
		o.Codec = codec.Default()
	}
	return o
}

// Dial 在ConnectTimeout内建立连接（包括TLS握手）
func Dial(ctx context.Context, addr string, opts Options) (*Conn, error) {
	o := opts.withDefaults()
	ctx, cancel := context.WithTimeout(ctx, o.ConnectTimeout)
	defer cancel()

	dialer := &net.Dialer{Timeout: o.ConnectTimeout}
	var (
		conn net.Conn
		err  error
	)
	if o.TLS != nil {
		td := &tls.Dialer{NetDialer: dialer, Config: o.TLS}
		conn, err = td.DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		var ne net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
			return nil, fmt.Errorf("%w: %s after %v: %w", network.ErrConnectTimeout, addr, o.ConnectTimeout, err)
		}
		return nil, fmt.Errorf("%w: dial %s: %w", network.ErrTransport, addr, err)
	}
	return NewConn(conn, o), nil
}

// Listener 接受新连接，每个连接都带上相同的解析器和编码
type Listener struct {
	ln   net.Listener
	opts Options
}

func Listen(addr string, opts Options) (*Listener, error) {
	o := opts.withDefaults()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: listen %s: %w", network.ErrTransport, addr, err)
	}
	if o.TLS != nil {
		ln = tls.NewListener(ln, o.TLS)
	}
	return &Listener{ln: ln, opts: o}, nil
}

// Accept 返回原始错误，调用方据此判断是否为临时错误
func (l *Listener) Accept() (*Conn, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		return nil, err
	}
	return NewConn(conn, l.opts), nil
}

func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

func (l *Listener) Close() error {
	return l.ln.Close()
}
