package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/YiuTerran/go-bidi/base/log"
	"github.com/YiuTerran/go-bidi/base/structs/set"
	"github.com/YiuTerran/go-bidi/network"
	"github.com/YiuTerran/go-bidi/network/dispatch"
	"github.com/YiuTerran/go-bidi/network/tcp"
	"github.com/samber/lo"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

/**  双向通信的服务端
  *  客户端登录后进入注册表，服务端可以单发或按组广播
  *  首包不是登录包的连接按请求-应答处理
**/

// Handler 服务端收到消息的回调，r可以用来回复
type Handler = dispatch.Handler[*Remote]

type Server struct {
	Addr string

	host          string
	port          int
	opts          tcp.Options
	keepalive     time.Duration
	loginTimeout  time.Duration
	maxConnNum    int
	maxHandlers   int
	fanout        int
	autoTerminate bool
	observer      network.Observer
	onRegistered  func(r *Remote)
	onRemoved     func(id string, r *Remote)

	table *dispatch.Table[*Remote]
	ln    *tcp.Listener

	mutexRemotes sync.RWMutex
	remotes      map[string]*Remote

	mutexConns sync.Mutex
	conns      *set.Set[*tcp.Conn]

	started   atomic.Bool
	closeFlag atomic.Bool
	closeSig  chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
	wgLn      sync.WaitGroup
	wgConns   sync.WaitGroup
	fields    log.Fields
}

// New 构造服务端，port为0时由系统分配，Start之后通过ListenAddr获取
func New(port int, options ...Option) (*Server, error) {
	if port < 0 || port > 65535 {
		return nil, fmt.Errorf("%w: invalid port %d", network.ErrInvalidArgument, port)
	}
	s := &Server{
		port:         port,
		opts:         tcp.Options{WriteTimeout: DefaultSendTimeout},
		keepalive:    DefaultKeepalive,
		loginTimeout: DefaultLoginTimeout,
		maxHandlers:  dispatch.DefaultPoolSize,
		fanout:       DefaultBroadcastFanout,
		remotes:      make(map[string]*Remote),
		conns:        set.NewSet[*tcp.Conn](),
		closeSig:     make(chan struct{}),
	}
	for _, option := range options {
		option(s)
	}
	if s.loginTimeout <= 0 {
		return nil, fmt.Errorf("%w: login timeout must be positive", network.ErrInvalidArgument)
	}
	if s.opts.WriteTimeout <= 0 {
		return nil, fmt.Errorf("%w: send timeout must be positive", network.ErrInvalidArgument)
	}
	if s.observer == nil {
		s.observer = network.NopObserver{}
	}
	s.Addr = net.JoinHostPort(s.host, strconv.Itoa(port))
	s.fields = log.Fields{"addr": s.Addr}.WithPrefix("server.Registry")
	// 每个Remote有自己的协程池，表自带的池只给没有池的Remote兜底
	s.table = dispatch.NewTable[*Remote](network.SideServer, dispatch.NewPool(s.maxHandlers), s.observer)
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s, nil
}

// RegisterHandler 登录和心跳标识返回ErrReservedIdentifier
func (s *Server) RegisterHandler(id string, h Handler) error {
	return s.table.Register(id, h)
}

func (s *Server) UnregisterHandler(id string) {
	s.table.Unregister(id)
}

// Start 开始监听，accept和心跳都在独立协程里
func (s *Server) Start() error {
	if s.closeFlag.Load() {
		return fmt.Errorf("%w: server closed", network.ErrConnectionClosed)
	}
	if !s.started.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: server already started", network.ErrInvalidArgument)
	}
	ln, err := tcp.Listen(s.Addr, s.opts)
	if err != nil {
		s.started.Store(false)
		return err
	}
	s.ln = ln
	s.fields = s.fields.WithField("addr", ln.Addr().String())
	if s.autoTerminate {
		s.fields.Info("auto terminate is enabled but has no effect on server side")
	}
	s.fields.Info("listening, keepalive %v, tls %v", s.keepalive, s.opts.TLS != nil)

	s.wgLn.Add(1)
	go s.run()
	if s.keepalive > 0 {
		s.wgLn.Add(1)
		go s.keepaliveLoop()
	}
	return nil
}

// ListenAddr 实际监听的地址，未启动时返回nil
func (s *Server) ListenAddr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

func (s *Server) run() {
	defer s.wgLn.Done()

	var tempDelay time.Duration
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if s.closeFlag.Load() || errors.Is(err, net.ErrClosed) {
				return
			}
			//nolint:staticcheck
			if ne, ok := err.(net.Error); ok && ne.Temporary() {
				if tempDelay == 0 {
					tempDelay = 5 * time.Millisecond
				} else {
					tempDelay *= 2
				}
				if max := 1 * time.Second; tempDelay > max {
					tempDelay = max
				}
				s.fields.Info("accept error: %v; retrying in %v", err, tempDelay)
				time.Sleep(tempDelay)
				continue
			}
			s.fields.Error("accept loop exit: %v", err)
			return
		}
		tempDelay = 0

		s.mutexConns.Lock()
		if s.maxConnNum > 0 && s.conns.Size() >= s.maxConnNum {
			s.mutexConns.Unlock()
			conn.Close()
			s.fields.Warn("too many connections, %v rejected", conn.RemoteAddr())
			continue
		}
		s.conns.AddItem(conn)
		s.mutexConns.Unlock()

		s.wgConns.Add(1)
		go func() {
			defer s.wgConns.Done()
			s.serve(conn)

			conn.Close()
			s.mutexConns.Lock()
			s.conns.RemoveItem(conn)
			s.mutexConns.Unlock()
		}()
	}
}

// serve 读首包：登录包进入注册表，其他按请求-应答处理
func (s *Server) serve(conn *tcp.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(s.loginTimeout))
	first, err := conn.Receive()
	if err != nil {
		s.fields.Debug("%v closed before login: %v", conn.RemoteAddr(), err)
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	if !first.Is(network.LoginID) {
		s.serveRequest(conn, first)
		return
	}
	identity, err := network.ParseLogin(first)
	if err != nil {
		s.fields.Warn("bad login from %v: %v", conn.RemoteAddr(), err)
		return
	}
	r := newRemote(identity, conn)
	r.pool = dispatch.NewPool(s.maxHandlers)
	s.register(r)
	s.readLoop(r)
}

// serveRequest 用临时Remote执行handler，handler返回或者服务端关闭后连接关闭
// handler里调用Close不会互相等待
func (s *Server) serveRequest(conn *tcp.Conn, e network.Envelope) {
	r := newTransientRemote(conn)
	r.pool = dispatch.NewPool(1)
	done := make(chan struct{})
	if !s.table.DispatchIn(s.ctx, r.pool, r, e, func() { close(done) }) {
		s.fields.Debug("request %s from %v has no handler", e.ID(), conn.RemoteAddr())
		return
	}
	select {
	case <-done:
	case <-s.closeSig:
	}
}

func (s *Server) readLoop(r *Remote) {
	for {
		e, err := r.conn.Receive()
		if err != nil {
			if s.remove(r) {
				s.fields.Info("remote %v removed: %v", r, err)
			}
			return
		}
		// 池满时只阻塞这个Remote的读循环
		s.table.DispatchIn(s.ctx, r.pool, r, e, nil)
	}
}

// register 同一个id的旧连接会被替换并关闭
func (s *Server) register(r *Remote) {
	s.mutexRemotes.Lock()
	old := s.remotes[r.ID()]
	s.remotes[r.ID()] = r
	s.mutexRemotes.Unlock()

	if old != nil {
		old.Close()
		s.fields.Info("remote %v replaced by %v", old, r)
		s.removed(old)
	}
	s.observer.Connected(network.SideServer)
	s.fields.Info("remote %v registered", r)
	log.JsonInfo("remote registered", remoteFields(r)...)
	if s.onRegistered != nil {
		s.onRegistered(r)
	}
}

// remove 只有注册表里仍是r时才删除，返回是否真的删除了
// 保证同一个Remote的移除回调最多执行一次
func (s *Server) remove(r *Remote) bool {
	s.mutexRemotes.Lock()
	cur, ok := s.remotes[r.ID()]
	ok = ok && cur == r
	if ok {
		delete(s.remotes, r.ID())
	}
	s.mutexRemotes.Unlock()

	r.Close()
	if ok {
		s.removed(r)
	}
	return ok
}

func (s *Server) removed(r *Remote) {
	s.observer.Disconnected(network.SideServer)
	log.JsonWith(zap.String("server", s.Addr)).Info("remote removed", remoteFields(r)...)
	if s.onRemoved != nil {
		s.onRemoved(r.ID(), r)
	}
}

// snapshot 持读锁复制一份，广播时不持锁
func (s *Server) snapshot(filter func(r *Remote) bool) []*Remote {
	s.mutexRemotes.RLock()
	defer s.mutexRemotes.RUnlock()
	return lo.Filter(lo.Values(s.remotes), func(r *Remote, _ int) bool {
		return filter == nil || filter(r)
	})
}

func (s *Server) ConnectedCount() int {
	s.mutexRemotes.RLock()
	defer s.mutexRemotes.RUnlock()
	return len(s.remotes)
}

// ConnectedIDs 已登录的id，按字典序
func (s *Server) ConnectedIDs() []string {
	s.mutexRemotes.RLock()
	ids := lo.Keys(s.remotes)
	s.mutexRemotes.RUnlock()
	sort.Strings(ids)
	return ids
}

func (s *Server) Remote(id string) (*Remote, bool) {
	s.mutexRemotes.RLock()
	defer s.mutexRemotes.RUnlock()
	r, ok := s.remotes[id]
	return r, ok
}

// SendTo 单发给指定id，写失败会移除该Remote
func (s *Server) SendTo(id string, msgID string, payload ...any) error {
	r, ok := s.Remote(id)
	if !ok {
		return fmt.Errorf("%w: no remote %s", network.ErrNotConnected, id)
	}
	err := r.Send(msgID, payload...)
	if errors.Is(err, network.ErrTransport) && s.remove(r) {
		s.fields.Warn("remote %v removed after send failure: %v", r, err)
	}
	return err
}

func (s *Server) keepaliveLoop() {
	defer s.wgLn.Done()

	ticker := time.NewTicker(s.keepalive)
	defer ticker.Stop()
	for {
		select {
		case <-s.closeSig:
			return
		case <-ticker.C:
			n := s.Broadcast(network.PingID, network.PingAck)
			s.fields.Debug("keepalive sent, %d remotes alive", n)
		}
	}
}

// Close 关闭监听和所有连接，等待协程退出，关闭后不能再Start
func (s *Server) Close() {
	if s.closeFlag.Swap(true) {
		return
	}
	close(s.closeSig)
	s.cancel()
	if s.ln != nil {
		_ = s.ln.Close()
	}
	s.wgLn.Wait()

	s.mutexConns.Lock()
	s.conns.ForEach(func(conn *tcp.Conn) {
		conn.Close()
	})
	s.mutexConns.Unlock()
	s.wgConns.Wait()
	s.fields.Info("server closed")
}

func (s *Server) String() string {
	return fmt.Sprintf("server<%s, %d remotes>", s.Addr, s.ConnectedCount())
}

func remoteFields(r *Remote) []zap.Field {
	return []zap.Field{
		zap.String("id", r.ID()),
		zap.String("group", r.Group()),
		zap.Stringer("remote_addr", r.RemoteAddr()),
	}
}
