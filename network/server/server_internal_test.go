package server

import (
	"errors"
	"net"
	"sync"
	"testing"

	"github.com/YiuTerran/go-bidi/network"
	"github.com/YiuTerran/go-bidi/network/tcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

type peer struct {
	conn     *tcp.Conn
	received atomic.Int32
	done     chan struct{}
}

// pipeRemote 用net.Pipe构造一个Remote，broken为true时对端已经关闭
func pipeRemote(t *testing.T, id, group string, broken bool) (*Remote, *peer) {
	a, b := net.Pipe()
	r := newRemote(network.NewIdentity(id, group), tcp.NewConn(a, tcp.Options{}))
	p := &peer{conn: tcp.NewConn(b, tcp.Options{}), done: make(chan struct{})}
	if broken {
		p.conn.Close()
		close(p.done)
		return r, p
	}
	go func() {
		defer close(p.done)
		for {
			if _, err := p.conn.Receive(); err != nil {
				return
			}
			p.received.Inc()
		}
	}()
	t.Cleanup(func() {
		r.Close()
		p.conn.Close()
		<-p.done
	})
	return r, p
}

type removedRecorder struct {
	mu  sync.Mutex
	ids []string
}

func (rr *removedRecorder) add(id string, _ *Remote) {
	rr.mu.Lock()
	rr.ids = append(rr.ids, id)
	rr.mu.Unlock()
}

func (rr *removedRecorder) all() []string {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	return append([]string(nil), rr.ids...)
}

func TestBroadcastEvictsBrokenRemote(t *testing.T) {
	rec := &removedRecorder{}
	s, err := New(0, WithOnClientRemoved(rec.add))
	require.NoError(t, err)

	peers := make(map[string]*peer)
	for _, id := range []string{"a", "b", "c", "d"} {
		r, p := pipeRemote(t, id, "", id == "c")
		peers[id] = p
		s.register(r)
	}
	require.Equal(t, 4, s.ConnectedCount())

	res := s.BroadcastDetailed("", "NEWS", "x")
	assert.Equal(t, 4, res.Targeted)
	assert.Equal(t, 3, res.Delivered)
	assert.Equal(t, 1, res.Evicted)
	assert.Equal(t, 3, res.Live)
	assert.True(t, errors.Is(res.Err, network.ErrTransport))
	assert.Equal(t, []string{"c"}, rec.all())
	assert.Equal(t, []string{"a", "b", "d"}, s.ConnectedIDs())

	// 下一次广播不再尝试c
	res = s.BroadcastDetailed("", "NEWS", "y")
	assert.Equal(t, 3, res.Targeted)
	assert.Equal(t, 3, res.Delivered)
	assert.NoError(t, res.Err)
	assert.Equal(t, []string{"c"}, rec.all())

	for _, id := range []string{"a", "b", "d"} {
		require.Eventually(t, func() bool { return peers[id].received.Load() == 2 }, timeout, tick)
	}
}

func TestBroadcastGroup(t *testing.T) {
	s, err := New(0)
	require.NoError(t, err)
	r1, p1 := pipeRemote(t, "a", "north", false)
	r2, p2 := pipeRemote(t, "b", "south", false)
	r3, p3 := pipeRemote(t, "c", "", false)
	s.register(r1)
	s.register(r2)
	s.register(r3)

	assert.Equal(t, 1, s.BroadcastGroup("NORTH", "N"))
	assert.Equal(t, 1, s.BroadcastGroup("", "D"))
	assert.Equal(t, 3, s.Broadcast("ALL"))
	assert.Equal(t, 0, s.BroadcastGroup("west", "W"))

	require.Eventually(t, func() bool { return p1.received.Load() == 2 }, timeout, tick)
	require.Eventually(t, func() bool { return p2.received.Load() == 1 }, timeout, tick)
	require.Eventually(t, func() bool { return p3.received.Load() == 2 }, timeout, tick)
}

func TestRegisterReplacesSameID(t *testing.T) {
	rec := &removedRecorder{}
	var registered atomic.Int32
	s, err := New(0, WithOnClientRemoved(rec.add), WithOnClientRegistered(func(*Remote) { registered.Inc() }))
	require.NoError(t, err)

	old, oldPeer := pipeRemote(t, "a", "", false)
	cur, _ := pipeRemote(t, "a", "", false)
	s.register(old)
	s.register(cur)

	assert.Equal(t, 1, s.ConnectedCount())
	got, ok := s.Remote("a")
	require.True(t, ok)
	assert.Same(t, cur, got)
	assert.Equal(t, []string{"a"}, rec.all())
	assert.Equal(t, int32(2), registered.Load())
	<-oldPeer.done

	// 旧连接的读循环退出时不会删掉新的
	assert.False(t, s.remove(old))
	assert.Equal(t, 1, s.ConnectedCount())
	assert.Equal(t, []string{"a"}, rec.all())

	assert.True(t, s.remove(cur))
	assert.False(t, s.remove(cur))
	assert.Equal(t, []string{"a", "a"}, rec.all())
}

func TestSendToEvicts(t *testing.T) {
	rec := &removedRecorder{}
	s, err := New(0, WithOnClientRemoved(rec.add))
	require.NoError(t, err)
	good, p := pipeRemote(t, "good", "", false)
	bad, _ := pipeRemote(t, "bad", "", true)
	s.register(good)
	s.register(bad)

	require.NoError(t, s.SendTo("good", "DIRECT", "x"))
	require.Eventually(t, func() bool { return p.received.Load() == 1 }, timeout, tick)

	assert.True(t, errors.Is(s.SendTo("bad", "DIRECT"), network.ErrTransport))
	assert.Equal(t, []string{"bad"}, rec.all())
	assert.True(t, errors.Is(s.SendTo("bad", "DIRECT"), network.ErrNotConnected))
}

func TestServerOptions(t *testing.T) {
	_, err := New(-1)
	assert.True(t, errors.Is(err, network.ErrInvalidArgument))
	_, err = New(0, WithLoginTimeout(0))
	assert.True(t, errors.Is(err, network.ErrInvalidArgument))

	s, err := New(0)
	require.NoError(t, err)
	h := func(*Remote, network.Envelope) {}
	assert.True(t, errors.Is(s.RegisterHandler(network.LoginID, h), network.ErrReservedIdentifier))
	assert.True(t, errors.Is(s.RegisterHandler(network.PingID, h), network.ErrReservedIdentifier))
	assert.Nil(t, s.ListenAddr())

	require.NoError(t, s.Start())
	assert.NotNil(t, s.ListenAddr())
	assert.Error(t, s.Start())
	s.Close()
	s.Close()
	assert.True(t, errors.Is(s.Start(), network.ErrConnectionClosed))
}

func TestBroadcastFanoutLimit(t *testing.T) {
	s, err := New(0, WithBroadcastFanout(2))
	require.NoError(t, err)
	peers := make([]*peer, 0, 5)
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		r, p := pipeRemote(t, id, "", false)
		peers = append(peers, p)
		s.register(r)
	}

	res := s.BroadcastDetailed("", "NEWS")
	assert.Equal(t, 5, res.Delivered)
	assert.Equal(t, 5, res.Live)
	for _, p := range peers {
		p := p
		require.Eventually(t, func() bool { return p.received.Load() == 1 }, timeout, tick)
	}
}
