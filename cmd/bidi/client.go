package main

import (
	"time"

	"github.com/YiuTerran/go-bidi/base/log"
	"github.com/YiuTerran/go-bidi/network"
	bidi "github.com/YiuTerran/go-bidi/network/client"
	"github.com/spf13/cobra"
)

var (
	clientID  string
	pingEvery time.Duration
)

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "connect to a server and measure PING round trips",
	RunE: func(cmd *cobra.Command, args []string) error {
		if clientID != "" {
			cfg.Client.ID = clientID
		}
		return run(&clientModule{every: pingEvery})
	},
}

func init() {
	clientCmd.Flags().StringVar(&clientID, "id", "", "override client.id")
	clientCmd.Flags().DurationVar(&pingEvery, "every", 5*time.Second, "ping interval")
}

type clientModule struct {
	every time.Duration
	cli   *bidi.Client
}

func (m *clientModule) Name() string {
	return "bidi.client"
}

func rtt(e network.Envelope) (time.Duration, bool) {
	sent, ok := e.GetString(0)
	if !ok {
		return 0, false
	}
	t, err := time.Parse(time.RFC3339Nano, sent)
	if err != nil {
		return 0, false
	}
	return time.Since(t), true
}

func (m *clientModule) OnInit() error {
	opts, err := cfg.ClientOptions(observer())
	if err != nil {
		return err
	}
	opts = append(opts, bidi.WithCallbacks(bidi.Callbacks{
		OnConnectionProblem: func(err error) {
			log.Warn("connection problem: %v", err)
		},
		OnConnectionGood: func() {
			log.Info("connection good")
		},
	}))
	m.cli, err = bidi.New(cfg.Client.Host, cfg.Client.Port, opts...)
	if err != nil {
		return err
	}
	err = m.cli.RegisterHandler(pongID, func(c *bidi.Client, e network.Envelope) {
		if d, ok := rtt(e); ok {
			log.Info("pong, rtt %v", d)
		}
	})
	if err != nil {
		return err
	}
	err = m.cli.RegisterHandler("NOTIFY", func(c *bidi.Client, e network.Envelope) {
		log.Info("server notify: %v", e)
	})
	if err != nil {
		return err
	}
	// 先用一次请求-应答确认服务端可用，失败也继续
	if reply, ok := m.cli.Request(cfg.Client.ConnectTimeout, pingID, time.Now().Format(time.RFC3339Nano)); ok {
		if d, ok := rtt(reply); ok {
			log.Info("server is up, request rtt %v", d)
		}
	}
	m.cli.Start()
	return nil
}

func (m *clientModule) Run(closeSig chan struct{}) {
	ticker := time.NewTicker(m.every)
	defer ticker.Stop()
	for {
		select {
		case <-closeSig:
			return
		case <-ticker.C:
			if err := m.cli.SendMessage(pingID, time.Now().Format(time.RFC3339Nano)); err != nil {
				log.Debug("ping skipped: %v", err)
			}
		}
	}
}

func (m *clientModule) OnDestroy() {
	m.cli.Close()
}
