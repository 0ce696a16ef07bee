package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/YiuTerran/go-bidi/base/log"
	"github.com/YiuTerran/go-bidi/network"
	"github.com/YiuTerran/go-bidi/network/dispatch"
	"github.com/YiuTerran/go-bidi/network/tcp"
	"github.com/cenkalti/backoff/v4"
	"github.com/samber/lo"
	"go.uber.org/atomic"
)

/**  双向通信的客户端
  *  登录后服务端可以随时推送消息，断线后自动重连
**/

// Handler 客户端收到消息的回调，c可以用来回复
type Handler = dispatch.Handler[*Client]

type Client struct {
	sync.Mutex
	Addr string

	identity      network.Identity
	opts          tcp.Options
	backoff       time.Duration
	autoTerminate bool
	maxFailures   int
	maxHandlers   int
	shutdown      func(err error)
	callbacks     Callbacks
	observer      network.Observer

	table    *dispatch.Table[*Client]
	state    atomic.Int32
	failures atomic.Int32
	started  atomic.Bool

	conn      *tcp.Conn
	closeFlag bool
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	fields    log.Fields
}

// New 构造客户端，调用Start之后才会连接
func New(host string, port int, options ...Option) (*Client, error) {
	if host == "" {
		return nil, fmt.Errorf("%w: empty host", network.ErrInvalidArgument)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("%w: invalid port %d", network.ErrInvalidArgument, port)
	}
	c := &Client{
		Addr:        net.JoinHostPort(host, strconv.Itoa(port)),
		identity:    network.NewIdentity("", ""),
		opts:        tcp.Options{ConnectTimeout: tcp.DefaultConnectTimeout},
		backoff:     DefaultBackoff,
		maxFailures: DefaultMaxFailures,
		maxHandlers: dispatch.DefaultPoolSize,
	}
	for _, option := range options {
		option(c)
	}
	if c.opts.ConnectTimeout <= 0 {
		return nil, fmt.Errorf("%w: connect timeout must be positive", network.ErrInvalidArgument)
	}
	if c.backoff <= 0 {
		return nil, fmt.Errorf("%w: backoff must be positive", network.ErrInvalidArgument)
	}
	if _, err := network.NewLoginEnvelope(c.identity); err != nil {
		return nil, err
	}
	if c.observer == nil {
		c.observer = network.NopObserver{}
	}
	if c.shutdown == nil {
		c.shutdown = func(err error) {
			log.Fatal("client %s shutting down: %v", c.identity.ID, err)
		}
	}
	c.fields = log.Fields{"id": c.identity.ID, "addr": c.Addr}.WithPrefix("client.Session")
	c.table = dispatch.NewTable[*Client](network.SideClient, dispatch.NewPool(c.maxHandlers), c.observer)
	c.ctx, c.cancel = context.WithCancel(context.Background())
	return c, nil
}

func (c *Client) Identity() network.Identity {
	return c.identity
}

func (c *Client) State() State {
	return State(c.state.Load())
}

func (c *Client) setState(s State) {
	old := State(c.state.Swap(int32(s)))
	if old != s {
		c.fields.Debug("state %s -> %s", old, s)
	}
}

// RegisterHandler 保留标识返回ErrReservedIdentifier，同一标识后注册的生效
func (c *Client) RegisterHandler(id string, h Handler) error {
	return c.table.Register(id, h)
}

func (c *Client) UnregisterHandler(id string) {
	c.table.Unregister(id)
}

// Start 在独立协程里连接、登录并读取消息，重复调用无效
func (c *Client) Start() {
	if !c.started.CompareAndSwap(false, true) {
		c.fields.Warn("client already started")
		return
	}
	c.wg.Add(1)
	go c.run()
}

func (c *Client) isClosed() bool {
	c.Lock()
	defer c.Unlock()
	return c.closeFlag
}

func (c *Client) run() {
	defer c.wg.Done()

	b := backoff.NewConstantBackOff(c.backoff)
	for {
		err := c.session()
		if c.isClosed() {
			c.setState(Closed)
			return
		}
		c.setState(Errored)
		failures := int(c.failures.Inc())
		c.fields.Warn("connection problem (%d in a row): %v", failures, err)
		if c.callbacks.OnConnectionProblem != nil {
			c.callbacks.OnConnectionProblem(err)
		}
		if c.autoTerminate && failures > c.maxFailures {
			c.fields.Error("server unreachable after %d attempts, giving up", failures)
			c.setState(Closed)
			c.shutdown(fmt.Errorf("%w: %d consecutive failures: %w", network.ErrFailureBudget, failures, err))
			return
		}
		wait := b.NextBackOff()
		c.fields.Info("reconnecting in %v", wait)
		select {
		case <-time.After(wait):
		case <-c.ctx.Done():
			c.setState(Closed)
			return
		}
		c.observer.Reconnecting()
	}
}

// session 一次完整的连接周期：连接 -> 登录 -> 读循环，返回导致断开的错误
func (c *Client) session() error {
	c.setState(Connecting)
	conn, err := tcp.Dial(c.ctx, c.Addr, c.opts)
	if err != nil {
		return err
	}

	c.setState(Handshaking)
	login, _ := network.NewLoginEnvelope(c.identity)
	if err = conn.Send(login); err != nil {
		conn.Close()
		return err
	}

	c.Lock()
	if c.closeFlag {
		c.Unlock()
		conn.Close()
		return net.ErrClosed
	}
	c.conn = conn
	c.Unlock()

	c.failures.Store(0)
	c.setState(Listening)
	c.observer.Connected(network.SideClient)
	c.fields.Info("logged in as %s", c.identity)
	if c.callbacks.OnReconnect != nil {
		c.callbacks.OnReconnect()
	}
	if c.callbacks.OnConnectionGood != nil {
		c.callbacks.OnConnectionGood()
	}

	err = c.listen(conn)

	c.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.Unlock()
	conn.Close()
	c.observer.Disconnected(network.SideClient)
	return err
}

func (c *Client) listen(conn *tcp.Conn) error {
	for {
		e, err := conn.Receive()
		if err != nil {
			return err
		}
		if e.Is(network.PingID) {
			c.fields.Debug("keepalive from server")
			continue
		}
		c.table.Dispatch(c, e)
	}
}

func (c *Client) currentConn() *tcp.Conn {
	c.Lock()
	defer c.Unlock()
	return c.conn
}

// SendMessage 通过当前的长连接推送消息，不等待回复
// 没有连接时返回ErrNotConnected；写失败会关闭连接，由会话协程负责重连
func (c *Client) SendMessage(id string, payload ...any) error {
	conn := c.currentConn()
	if conn == nil || c.State() != Listening {
		return fmt.Errorf("%w: client %s is %s", network.ErrNotConnected, c.identity.ID, c.State())
	}
	err := conn.Send(network.NewEnvelope(id, payload...))
	if errors.Is(err, network.ErrTransport) {
		conn.Close()
	}
	return err
}

// Close 停止重连并关闭当前连接，等待会话协程退出
func (c *Client) Close() {
	c.Lock()
	if c.closeFlag {
		c.Unlock()
		return
	}
	c.closeFlag = true
	conn := c.conn
	c.Unlock()

	c.cancel()
	if conn != nil {
		conn.Close()
	}
	c.wg.Wait()
	c.setState(Closed)
}

func (c *Client) String() string {
	return fmt.Sprintf("client<%s @ %s, %s>", c.identity, c.Addr, lo.Ternary(c.started.Load(), c.State().String(), "NEW"))
}
