package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/YiuTerran/go-bidi/network"
	"github.com/spf13/viper"
)

// TLSConfig 证书文件路径，客户端不填CA时使用系统根证书
type TLSConfig struct {
	Enable             bool   `mapstructure:"enable"`
	CertFile           string `mapstructure:"cert_file"`
	KeyFile            string `mapstructure:"key_file"`
	CAFile             string `mapstructure:"ca_file"`
	ServerName         string `mapstructure:"server_name"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify"`
}

func setTLSDefaults(vp *viper.Viper, prefix string) {
	vp.SetDefault(prefix+".enable", false)
	vp.SetDefault(prefix+".cert_file", "")
	vp.SetDefault(prefix+".key_file", "")
	vp.SetDefault(prefix+".ca_file", "")
	vp.SetDefault(prefix+".server_name", "")
	vp.SetDefault(prefix+".insecure_skip_verify", false)
}

func (t TLSConfig) pool() (*x509.CertPool, error) {
	if t.CAFile == "" {
		return nil, nil
	}
	pem, err := os.ReadFile(t.CAFile)
	if err != nil {
		return nil, fmt.Errorf("%w: read ca %s: %w", network.ErrInvalidArgument, t.CAFile, err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("%w: no certificate in %s", network.ErrInvalidArgument, t.CAFile)
	}
	return pool, nil
}

// ServerTLS 未开启时返回nil；配置了CA时要求客户端证书
func (t TLSConfig) ServerTLS() (*tls.Config, error) {
	if !t.Enable {
		return nil, nil
	}
	cert, err := tls.LoadX509KeyPair(t.CertFile, t.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("%w: load key pair: %w", network.ErrInvalidArgument, err)
	}
	conf := &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}
	pool, err := t.pool()
	if err != nil {
		return nil, err
	}
	if pool != nil {
		conf.ClientCAs = pool
		conf.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return conf, nil
}

// ClientTLS 未开启时返回nil，证书可选
func (t TLSConfig) ClientTLS() (*tls.Config, error) {
	if !t.Enable {
		return nil, nil
	}
	conf := &tls.Config{
		ServerName:         t.ServerName,
		InsecureSkipVerify: t.InsecureSkipVerify, //nolint:gosec
		MinVersion:         tls.VersionTLS12,
	}
	if t.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(t.CertFile, t.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("%w: load key pair: %w", network.ErrInvalidArgument, err)
		}
		conf.Certificates = []tls.Certificate{cert}
	}
	pool, err := t.pool()
	if err != nil {
		return nil, err
	}
	conf.RootCAs = pool
	return conf, nil
}
