package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/YiuTerran/go-bidi/base/log"
	"github.com/YiuTerran/go-bidi/base/util/fsutil"
	"github.com/YiuTerran/go-bidi/network"
	"github.com/YiuTerran/go-bidi/network/client"
	"github.com/YiuTerran/go-bidi/network/codec"
	"github.com/YiuTerran/go-bidi/network/server"
	"github.com/spf13/viper"
)

/**  客户端、服务端和日志的配置
  *  文件格式由后缀决定，环境变量以BIDI_开头，如BIDI_SERVER_PORT
**/

const (
	EnvPrefix   = "BIDI"
	DefaultName = "bidi.yaml"
)

type Config struct {
	Log     log.Config    `mapstructure:"log"`
	Client  ClientConfig  `mapstructure:"client"`
	Server  ServerConfig  `mapstructure:"server"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type ClientConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ID             string        `mapstructure:"id"`
	Group          string        `mapstructure:"group"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	Backoff        time.Duration `mapstructure:"backoff"`
	AutoTerminate  bool          `mapstructure:"auto_terminate"`
	MaxFailures    int           `mapstructure:"max_failures"`
	Codec          string        `mapstructure:"codec"`
	MaxHandlers    int           `mapstructure:"max_handlers"`
	TLS            TLSConfig     `mapstructure:"tls"`
}

type ServerConfig struct {
	Host          string        `mapstructure:"host"`
	Port          int           `mapstructure:"port"`
	Keepalive     time.Duration `mapstructure:"keepalive"`
	AutoTerminate bool          `mapstructure:"auto_terminate"`
	MaxConnNum    int           `mapstructure:"max_conn_num"`
	LoginTimeout  time.Duration `mapstructure:"login_timeout"`
	SendTimeout   time.Duration `mapstructure:"send_timeout"`
	Codec         string        `mapstructure:"codec"`
	MaxHandlers   int           `mapstructure:"max_handlers"`
	Fanout        int           `mapstructure:"broadcast_fanout"`
	TLS           TLSConfig     `mapstructure:"tls"`
}

// MetricsConfig Addr为空时不开启http
type MetricsConfig struct {
	Enable bool   `mapstructure:"enable"`
	Addr   string `mapstructure:"addr"`
}

func setDefaults(vp *viper.Viper) {
	vp.SetDefault("log.name", "bidi")
	vp.SetDefault("log.path", "")
	vp.SetDefault("log.level", string(log.LevelInfo))
	vp.SetDefault("log.out", "console")
	vp.SetDefault("log.max_size", 100)
	vp.SetDefault("log.max_age", 7)
	vp.SetDefault("log.max_backups", 10)
	vp.SetDefault("log.rotate", true)

	vp.SetDefault("client.host", "127.0.0.1")
	vp.SetDefault("client.port", 9900)
	vp.SetDefault("client.id", "")
	vp.SetDefault("client.group", network.DefaultGroup)
	vp.SetDefault("client.connect_timeout", 10*time.Second)
	vp.SetDefault("client.write_timeout", 10*time.Second)
	vp.SetDefault("client.backoff", client.DefaultBackoff)
	vp.SetDefault("client.auto_terminate", false)
	vp.SetDefault("client.max_failures", client.DefaultMaxFailures)
	vp.SetDefault("client.codec", "proto")
	vp.SetDefault("client.max_handlers", 256)
	setTLSDefaults(vp, "client.tls")

	vp.SetDefault("server.host", "")
	vp.SetDefault("server.port", 9900)
	vp.SetDefault("server.keepalive", server.DefaultKeepalive)
	vp.SetDefault("server.auto_terminate", false)
	vp.SetDefault("server.max_conn_num", 0)
	vp.SetDefault("server.login_timeout", server.DefaultLoginTimeout)
	vp.SetDefault("server.send_timeout", server.DefaultSendTimeout)
	vp.SetDefault("server.codec", "proto")
	vp.SetDefault("server.max_handlers", 256)
	vp.SetDefault("server.broadcast_fanout", server.DefaultBroadcastFanout)
	setTLSDefaults(vp, "server.tls")

	vp.SetDefault("metrics.enable", false)
	vp.SetDefault("metrics.addr", ":9901")
}

func newViper() *viper.Viper {
	vp := viper.New()
	setDefaults(vp)
	vp.SetEnvPrefix(EnvPrefix)
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()
	return vp
}

func decode(vp *viper.Viper) (*Config, error) {
	var c Config
	if err := vp.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("%w: decode config: %w", network.ErrInvalidArgument, err)
	}
	if _, err := codec.ByName(c.Client.Codec); err != nil {
		return nil, err
	}
	if _, err := codec.ByName(c.Server.Codec); err != nil {
		return nil, err
	}
	return &c, nil
}

// Load path为空时查找_config/bidi.yaml，仍然找不到就只用默认值和环境变量
func Load(path string) (*Config, error) {
	vp := newViper()
	if path == "" {
		path = fsutil.FindConfig(DefaultName)
	}
	if path != "" {
		vp.SetConfigFile(path)
		if err := vp.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: read config %s: %w", network.ErrInvalidArgument, path, err)
		}
		log.Debug("config loaded from %s", path)
	}
	return decode(vp)
}

// LoadBytes 从内存读取，typ是yaml/json/toml
func LoadBytes(typ string, data []byte) (*Config, error) {
	vp := newViper()
	vp.SetConfigType(typ)
	if err := vp.ReadConfig(strings.NewReader(string(data))); err != nil {
		return nil, fmt.Errorf("%w: parse %s config: %w", network.ErrInvalidArgument, typ, err)
	}
	return decode(vp)
}
