package natsx

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/nats-io/nats.go"
)

// NatsxConfig 客户端配置
type NatsxConfig struct {
	Servers       []string
	Name          string
	User          string
	Pass          string
	ReconnectWait time.Duration
	Timeout       time.Duration
}

// msgConn is the part of *nats.Conn the publisher needs.
type msgConn interface {
	PublishMsg(m *nats.Msg) error
	FlushWithContext(ctx context.Context) error
	Drain() error
}

// NatsxClient wraps one NATS connection.
type NatsxClient struct {
	cfg NatsxConfig
	nc  msgConn
}

// NewNatsxClient connects and keeps reconnecting forever in the background.
func NewNatsxClient(cfg NatsxConfig) (*NatsxClient, error) {
	if len(cfg.Servers) == 0 {
		return nil, errors.New("nats servers missing")
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 500 * time.Millisecond
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 3 * time.Second
	}
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.ReconnectJitter(100*time.Millisecond, 500*time.Millisecond),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			glog.Warningf("[natsx] disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			glog.Infof("[natsx] reconnected to %s", c.ConnectedUrl())
		}),
	}
	if cfg.User != "" {
		opts = append(opts, nats.UserInfo(cfg.User, cfg.Pass))
	}
	nc, err := nats.Connect(strings.Join(cfg.Servers, ","), opts...)
	if err != nil {
		return nil, err
	}
	glog.Infof("[natsx] connected to %s", nc.ConnectedUrl())
	return &NatsxClient{cfg: cfg, nc: nc}, nil
}

// Close drains pending publishes then closes the connection.
func (c *NatsxClient) Close() error {
	if c == nil || c.nc == nil {
		return nil
	}
	return c.nc.Drain()
}

func (c *NatsxClient) sendCore(subject string, data []byte, hdr map[string]string) error {
	msg := nats.NewMsg(subject)
	msg.Data = data
	for k, v := range hdr {
		msg.Header.Add(k, v)
	}
	return c.nc.PublishMsg(msg)
}
