package server_test

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/YiuTerran/go-bidi/network"
	"github.com/YiuTerran/go-bidi/network/client"
	"github.com/YiuTerran/go-bidi/network/server"
	"github.com/YiuTerran/go-bidi/network/tcp"
	"go.uber.org/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const (
	waitFor = 3 * time.Second
	backoff = 50 * time.Millisecond
)

type inbox struct {
	mu    sync.Mutex
	items []network.Envelope
}

func (i *inbox) handler(_ *client.Client, e network.Envelope) {
	i.mu.Lock()
	i.items = append(i.items, e)
	i.mu.Unlock()
}

func (i *inbox) count() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.items)
}

func (i *inbox) last() network.Envelope {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.items[len(i.items)-1]
}

type droppedCounter struct {
	network.NopObserver
	n atomic.Int32
}

func (d *droppedCounter) Dropped(string, string) {
	d.n.Inc()
}

func startServer(port int, opts ...server.Option) *server.Server {
	srv, err := server.New(port, append([]server.Option{server.WithHost("127.0.0.1")}, opts...)...)
	Expect(err).NotTo(HaveOccurred())
	Expect(srv.Start()).To(Succeed())
	return srv
}

var _ = Describe("Server", func() {
	var (
		srv     *server.Server
		port    int
		removed *atomic.Int32
	)

	BeforeEach(func() {
		removed = atomic.NewInt32(0)
		srv = startServer(0,
			server.WithKeepalive(50*time.Millisecond),
			server.WithOnClientRemoved(func(string, *server.Remote) { removed.Inc() }),
		)
		port = srv.ListenAddr().(*net.TCPAddr).Port
	})

	AfterEach(func() {
		srv.Close()
	})

	newClient := func(id, group string, opts ...client.Option) *client.Client {
		base := []client.Option{client.WithIdentity(id, group), client.WithBackoff(backoff)}
		c, err := client.New("127.0.0.1", port, append(base, opts...)...)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(c.Close)
		return c
	}

	Describe("registry", func() {
		It("should register clients on login", func() {
			newClient("b", "").Start()
			newClient("a", "").Start()

			Eventually(srv.ConnectedIDs, waitFor).Should(Equal([]string{"a", "b"}))
			r, ok := srv.Remote("a")
			Expect(ok).To(BeTrue())
			Expect(r.Group()).To(Equal(network.DefaultGroup))
			Expect(r.String()).To(HavePrefix("[a (Gr: " + network.DefaultGroup + ") @ "))
		})

		It("should remove a client exactly once when it leaves", func() {
			c := newClient("a", "")
			c.Start()
			Eventually(srv.ConnectedCount, waitFor).Should(Equal(1))

			c.Close()
			Eventually(srv.ConnectedCount, waitFor).Should(Equal(0))
			Consistently(removed.Load, 200*time.Millisecond).Should(Equal(int32(1)))
		})

		It("should close connections with a malformed login", func() {
			conn, err := tcp.Dial(context.Background(), srv.ListenAddr().String(), tcp.Options{})
			Expect(err).NotTo(HaveOccurred())
			defer conn.Close()
			Expect(conn.Send(network.NewEnvelope(network.LoginID))).To(Succeed())

			_, err = conn.Receive()
			Expect(errors.Is(err, network.ErrConnectionClosed)).To(BeTrue(), "%v", err)
			Expect(srv.ConnectedCount()).To(Equal(0))
		})
	})

	Describe("broadcast", func() {
		It("should deliver exactly once with case-insensitive match", func() {
			boxes := []*inbox{{}, {}}
			for i, id := range []string{"a", "b"} {
				c := newClient(id, "")
				Expect(c.RegisterHandler("update", boxes[i].handler)).To(Succeed())
				c.Start()
			}
			Eventually(srv.ConnectedCount, waitFor).Should(Equal(2))

			Expect(srv.Broadcast("UPDATE", "v1")).To(Equal(2))
			for _, box := range boxes {
				Eventually(box.count, waitFor).Should(Equal(1))
				Consistently(box.count, 100*time.Millisecond).Should(Equal(1))
				Expect(box.last().Payload()).To(Equal([]any{"v1"}))
			}
		})

		It("should only reach the target group", func() {
			north, south := &inbox{}, &inbox{}
			cn := newClient("n", "north")
			Expect(cn.RegisterHandler("NEWS", north.handler)).To(Succeed())
			cs := newClient("s", "south")
			Expect(cs.RegisterHandler("NEWS", south.handler)).To(Succeed())
			cn.Start()
			cs.Start()
			Eventually(srv.ConnectedCount, waitFor).Should(Equal(2))

			Expect(srv.BroadcastGroup("north", "NEWS", "x")).To(Equal(1))
			Eventually(north.count, waitFor).Should(Equal(1))
			Consistently(south.count, 100*time.Millisecond).Should(Equal(0))
		})

		It("should not deliver keepalives to handlers", func() {
			obs := &droppedCounter{}
			c := newClient("a", "", client.WithObserver(obs))
			c.Start()
			Eventually(srv.ConnectedCount, waitFor).Should(Equal(1))

			Consistently(obs.n.Load, 300*time.Millisecond).Should(Equal(int32(0)))
			Expect(c.State()).To(Equal(client.Listening))
			Expect(srv.ConnectedCount()).To(Equal(1))
		})
	})

	Describe("client to server", func() {
		It("should dispatch messages with the sending remote", func() {
			from := make(chan string, 1)
			Expect(srv.RegisterHandler("REPORT", func(r *server.Remote, e network.Envelope) {
				v, _ := e.GetString(0)
				from <- r.ID() + ":" + v
			})).To(Succeed())

			c := newClient("a", "")
			c.Start()
			Eventually(c.State, waitFor).Should(Equal(client.Listening))
			Expect(c.SendMessage("REPORT", "ok")).To(Succeed())
			Eventually(from, waitFor).Should(Receive(Equal("a:ok")))
		})

		It("should send to a single client", func() {
			box := &inbox{}
			c := newClient("a", "")
			Expect(c.RegisterHandler("DIRECT", box.handler)).To(Succeed())
			c.Start()
			Eventually(srv.ConnectedCount, waitFor).Should(Equal(1))

			Expect(srv.SendTo("a", "DIRECT", "hi")).To(Succeed())
			Eventually(box.count, waitFor).Should(Equal(1))
			Expect(errors.Is(srv.SendTo("nobody", "DIRECT"), network.ErrNotConnected)).To(BeTrue())
		})
	})

	Describe("request and reply", func() {
		BeforeEach(func() {
			Expect(srv.RegisterHandler("ECHO", func(r *server.Remote, e network.Envelope) {
				_ = r.Send("ECHO_REPLY", e.Payload()...)
			})).To(Succeed())
			Expect(srv.RegisterHandler("SLOW", func(r *server.Remote, e network.Envelope) {
				time.Sleep(500 * time.Millisecond)
				_ = r.Send("SLOW_REPLY")
			})).To(Succeed())
		})

		It("should return the reply without registering the caller", func() {
			c := newClient("caller", "")
			reply, err := c.SendMessageAndAwaitReply(context.Background(), time.Second, "ECHO", "hi", 2.0)
			Expect(err).NotTo(HaveOccurred())
			Expect(reply.ID()).To(Equal("ECHO_REPLY"))
			Expect(reply.Payload()).To(Equal([]any{"hi", 2.0}))
			Expect(srv.ConnectedCount()).To(Equal(0))
		})

		It("should give up after the timeout", func() {
			c := newClient("caller", "")
			start := time.Now()
			_, err := c.SendMessageAndAwaitReply(context.Background(), 100*time.Millisecond, "SLOW")
			Expect(errors.Is(err, network.ErrReplyTimeout)).To(BeTrue(), "%v", err)
			Expect(time.Since(start)).To(BeNumerically("<", 400*time.Millisecond))
		})

		It("should honour context cancellation", func() {
			c := newClient("caller", "")
			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()
			_, err := c.SendMessageAndAwaitReply(ctx, 5*time.Second, "SLOW")
			Expect(err).To(HaveOccurred())
		})

		It("should close the connection when nobody handles the request", func() {
			c := newClient("caller", "")
			_, err := c.SendMessageAndAwaitReply(context.Background(), time.Second, "NOPE")
			Expect(errors.Is(err, network.ErrConnectionClosed)).To(BeTrue(), "%v", err)
		})
	})

	Describe("reconnect", func() {
		It("should log in again after the server restarts", func() {
			reconnected := atomic.NewInt32(0)
			c := newClient("a", "", client.WithCallbacks(client.Callbacks{
				OnReconnect: func() { reconnected.Inc() },
			}))
			c.Start()
			Eventually(srv.ConnectedCount, waitFor).Should(Equal(1))

			srv.Close()
			Eventually(c.State, waitFor).ShouldNot(Equal(client.Listening))

			srv = startServer(port)
			Eventually(srv.ConnectedIDs, waitFor).Should(Equal([]string{"a"}))
			Eventually(c.State, waitFor).Should(Equal(client.Listening))
			Expect(reconnected.Load()).To(BeNumerically(">=", 2))
		})
	})
})
