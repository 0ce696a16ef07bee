package server

import (
	"fmt"
	"net"
	"time"

	"github.com/YiuTerran/go-bidi/network"
	"github.com/YiuTerran/go-bidi/network/dispatch"
	"github.com/YiuTerran/go-bidi/network/tcp"
)

// Remote 服务端视角的一个已登录连接
// 由注册表持有，handler执行期间只是引用
type Remote struct {
	identity  network.Identity
	conn      *tcp.Conn
	since     time.Time
	transient bool
	// 为nil时使用处理表自带的池
	pool *dispatch.Pool
}

func newRemote(identity network.Identity, conn *tcp.Conn) *Remote {
	return &Remote{identity: identity, conn: conn, since: time.Now()}
}

// newTransientRemote 请求-应答的临时连接，不进注册表，id使用对端地址
func newTransientRemote(conn *tcp.Conn) *Remote {
	r := newRemote(network.Identity{ID: conn.RemoteAddr().String()}, conn)
	r.transient = true
	return r
}

func (r *Remote) ID() string {
	return r.identity.ID
}

func (r *Remote) Group() string {
	return r.identity.Group
}

func (r *Remote) Identity() network.Identity {
	return r.identity
}

// Since 登录时间
func (r *Remote) Since() time.Time {
	return r.since
}

// Transient 是否是请求-应答的临时连接
func (r *Remote) Transient() bool {
	return r.transient
}

func (r *Remote) RemoteAddr() net.Addr {
	return r.conn.RemoteAddr()
}

// Send 直接写给这个Remote，失败不会自动移除，需要移除请用Server.SendTo
func (r *Remote) Send(id string, payload ...any) error {
	return r.conn.Send(network.NewEnvelope(id, payload...))
}

func (r *Remote) SendEnvelope(e network.Envelope) error {
	return r.conn.Send(e)
}

func (r *Remote) Close() {
	r.conn.Close()
}

func (r *Remote) String() string {
	if r.transient {
		return fmt.Sprintf("[request @ %v]", r.RemoteAddr())
	}
	return fmt.Sprintf("[%s (Gr: %s) @ %v]", r.identity.ID, r.identity.Group, r.RemoteAddr())
}
