package main

import (
	"time"

	"github.com/YiuTerran/go-bidi/base/log"
	"github.com/YiuTerran/go-bidi/network"
	bidi "github.com/YiuTerran/go-bidi/network/server"
	"github.com/spf13/cobra"
)

var (
	serverPort int
	notifyEach time.Duration
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "start a server answering PING with PONG",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = serverPort
		}
		return run(&serverModule{notify: notifyEach})
	},
}

func init() {
	serverCmd.Flags().IntVarP(&serverPort, "port", "p", 0, "override server.port")
	serverCmd.Flags().DurationVar(&notifyEach, "notify", 0, "broadcast a NOTIFY to every client at this interval, 0 disables")
}

type serverModule struct {
	notify time.Duration
	srv    *bidi.Server
}

func (m *serverModule) Name() string {
	return "bidi.server"
}

func (m *serverModule) OnInit() error {
	opts, err := cfg.ServerOptions(observer())
	if err != nil {
		return err
	}
	opts = append(opts,
		bidi.WithOnClientRegistered(func(r *bidi.Remote) {
			log.Info("hello %v", r)
		}),
		bidi.WithOnClientRemoved(func(id string, r *bidi.Remote) {
			log.Info("bye %s", id)
		}),
	)
	m.srv, err = bidi.New(cfg.Server.Port, opts...)
	if err != nil {
		return err
	}
	err = m.srv.RegisterHandler(pingID, func(r *bidi.Remote, e network.Envelope) {
		if err := r.Send(pongID, e.Payload()...); err != nil {
			log.Warn("reply to %v: %v", r, err)
		}
	})
	if err != nil {
		return err
	}
	return m.srv.Start()
}

func (m *serverModule) Run(closeSig chan struct{}) {
	if m.notify <= 0 {
		<-closeSig
		return
	}
	ticker := time.NewTicker(m.notify)
	defer ticker.Stop()
	for {
		select {
		case <-closeSig:
			return
		case now := <-ticker.C:
			n := m.srv.Broadcast("NOTIFY", now.Format(time.RFC3339))
			log.Info("notify sent, %d clients online", n)
		}
	}
}

func (m *serverModule) OnDestroy() {
	m.srv.Close()
}
