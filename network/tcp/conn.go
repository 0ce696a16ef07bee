package tcp

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/YiuTerran/go-bidi/network"
	"go.uber.org/atomic"
)

// Conn 一个连接上收发Envelope
// Send由内部锁保证串行，Receive只允许一个协程调用
// 任何读写失败之后连接即不可用，调用方需要关闭并重建
type Conn struct {
	mu           sync.Mutex
	conn         net.Conn
	parser       IParser
	codec        network.Codec
	writeTimeout time.Duration

	failed atomic.Bool
	closed atomic.Bool
}

func NewConn(conn net.Conn, opts Options) *Conn {
	o := opts.withDefaults()
	return &Conn{
		conn:         conn,
		parser:       o.Parser,
		codec:        o.Codec,
		writeTimeout: o.WriteTimeout,
	}
}

// Send 按调用顺序写入一个Envelope
// 编码失败返回ErrInvalidEnvelope，连接仍然可用；写失败返回ErrTransport，连接不可再用
func (c *Conn) Send(e network.Envelope) error {
	data, err := c.codec.Marshal(e)
	if err != nil {
		return fmt.Errorf("%w: %w", network.ErrInvalidEnvelope, err)
	}
	frame, err := c.parser.Pack(data)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failed.Load() || c.closed.Load() {
		return fmt.Errorf("%w: connection to %v is no longer usable", network.ErrTransport, c.RemoteAddr())
	}
	if c.writeTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	if _, err = c.conn.Write(frame); err != nil {
		c.failed.Store(true)
		return fmt.Errorf("%w: write to %v: %w", network.ErrTransport, c.RemoteAddr(), err)
	}
	return nil
}

// Receive 阻塞直到读到一个完整的Envelope或者连接出错
func (c *Conn) Receive() (network.Envelope, error) {
	data, err := c.parser.Read(c.conn)
	if err != nil {
		c.failed.Store(true)
		return network.Envelope{}, c.classify(err)
	}
	e, err := c.codec.Unmarshal(data)
	if err != nil {
		// 帧已经读完但内容错误，流的状态不可信
		c.failed.Store(true)
		return network.Envelope{}, err
	}
	return e, nil
}

func (c *Conn) classify(err error) error {
	switch {
	case errors.Is(err, network.ErrDecode):
		return err
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, net.ErrClosed), errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE), c.closed.Load():
		return fmt.Errorf("%w: %v: %w", network.ErrConnectionClosed, c.RemoteAddr(), err)
	}
	return fmt.Errorf("%w: read from %v: %w", network.ErrTransport, c.RemoteAddr(), err)
}

// SetReadDeadline 登录和请求-应答场景下限制等待时间，传零值取消
func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

// Failed 读写是否出过错
func (c *Conn) Failed() bool {
	return c.failed.Load()
}

func (c *Conn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Close 可重复调用，阻塞中的Receive会返回ErrConnectionClosed
func (c *Conn) Close() {
	if c.closed.Swap(true) {
		return
	}
	_ = c.conn.Close()
}
