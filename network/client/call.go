package client

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/YiuTerran/go-bidi/network"
	"github.com/YiuTerran/go-bidi/network/tcp"
)

// SendMessageAndAwaitReply 请求-应答模式：新建一个临时连接，写入一个Envelope，等待一个回复后关闭
// 整个过程（包括建立连接）不会超过timeout；任何失败都以error返回
// 服务端把非登录的首包当作请求处理，不会把这个连接登记为Remote
func (c *Client) SendMessageAndAwaitReply(ctx context.Context, timeout time.Duration, id string, payload ...any) (network.Envelope, error) {
	if timeout <= 0 {
		return network.Envelope{}, fmt.Errorf("%w: timeout must be positive", network.ErrInvalidArgument)
	}
	deadline := time.Now().Add(timeout)
	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	opts := c.opts
	opts.ConnectTimeout = timeout
	opts.WriteTimeout = timeout
	conn, err := tcp.Dial(ctx, c.Addr, opts)
	if err != nil {
		return network.Envelope{}, err
	}
	defer conn.Close()
	// 外部取消时让阻塞的Receive立即返回
	stop := context.AfterFunc(ctx, conn.Close)
	defer stop()

	if err = conn.SetReadDeadline(deadline); err != nil {
		return network.Envelope{}, fmt.Errorf("%w: %w", network.ErrTransport, err)
	}
	if err = conn.Send(network.NewEnvelope(id, payload...)); err != nil {
		return network.Envelope{}, err
	}
	reply, err := conn.Receive()
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return network.Envelope{}, fmt.Errorf("%w: %s after %v: %w", network.ErrReplyTimeout, id, timeout, err)
		}
		return network.Envelope{}, err
	}
	return reply, nil
}

// Request 只关心有没有回复的简化版本，失败时返回false
func (c *Client) Request(timeout time.Duration, id string, payload ...any) (network.Envelope, bool) {
	reply, err := c.SendMessageAndAwaitReply(context.Background(), timeout, id, payload...)
	if err != nil {
		c.fields.Warn("request %s failed: %v", id, err)
		return network.Envelope{}, false
	}
	return reply, true
}
