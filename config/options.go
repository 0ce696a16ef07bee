package config

import (
	"github.com/YiuTerran/go-bidi/network"
	"github.com/YiuTerran/go-bidi/network/client"
	"github.com/YiuTerran/go-bidi/network/codec"
	"github.com/YiuTerran/go-bidi/network/server"
)

// ClientOptions 把配置转为客户端选项，observer可以为nil
func (c *Config) ClientOptions(observer network.Observer) ([]client.Option, error) {
	cc := c.Client
	cd, err := codec.ByName(cc.Codec)
	if err != nil {
		return nil, err
	}
	tlsConf, err := cc.TLS.ClientTLS()
	if err != nil {
		return nil, err
	}
	opts := []client.Option{
		client.WithIdentity(cc.ID, cc.Group),
		client.WithConnectTimeout(cc.ConnectTimeout),
		client.WithWriteTimeout(cc.WriteTimeout),
		client.WithBackoff(cc.Backoff),
		client.WithCodec(cd),
		client.WithMaxHandlers(cc.MaxHandlers),
	}
	if cc.AutoTerminate {
		opts = append(opts, client.WithAutoTerminate(cc.MaxFailures))
	}
	if tlsConf != nil {
		opts = append(opts, client.WithTLS(tlsConf))
	}
	if observer != nil {
		opts = append(opts, client.WithObserver(observer))
	}
	return opts, nil
}

// ServerOptions 把配置转为服务端选项，observer可以为nil
func (c *Config) ServerOptions(observer network.Observer) ([]server.Option, error) {
	sc := c.Server
	cd, err := codec.ByName(sc.Codec)
	if err != nil {
		return nil, err
	}
	tlsConf, err := sc.TLS.ServerTLS()
	if err != nil {
		return nil, err
	}
	opts := []server.Option{
		server.WithHost(sc.Host),
		server.WithKeepalive(sc.Keepalive),
		server.WithMaxConnNum(sc.MaxConnNum),
		server.WithLoginTimeout(sc.LoginTimeout),
		server.WithSendTimeout(sc.SendTimeout),
		server.WithCodec(cd),
		server.WithMaxHandlers(sc.MaxHandlers),
		server.WithBroadcastFanout(sc.Fanout),
		server.WithAutoTerminate(sc.AutoTerminate),
	}
	if tlsConf != nil {
		opts = append(opts, server.WithTLS(tlsConf))
	}
	if observer != nil {
		opts = append(opts, server.WithObserver(observer))
	}
	return opts, nil
}
