package natsx

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang/glog"
)

// Header names set on every published event.
const (
	HeaderMsgID = "Nats-Msg-Id"
	HeaderKey   = "Psocial-Key"
)

// NatsxProducer publishes events to one subject, retrying failed publishes.
type NatsxProducer struct {
	c       *NatsxClient
	subject string
	Retries int
	Backoff time.Duration
}

func NewNatsxProducer(c *NatsxClient, subject string) *NatsxProducer {
	return &NatsxProducer{c: c, subject: subject, Retries: 2, Backoff: 100 * time.Millisecond}
}

// 生成随机 msgID（16字节）
func genMsgID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// Publish sends payload with a fresh Nats-Msg-Id so JetStream streams on the
// subject can drop retried duplicates. The flush makes server-side failures
// visible to the caller.
func (p *NatsxProducer) Publish(ctx context.Context, key string, payload []byte) error {
	hdr := map[string]string{HeaderMsgID: genMsgID(), HeaderKey: key}

	var err error
	for i := 0; i <= p.Retries; i++ {
		if err = ctx.Err(); err != nil {
			return err
		}
		err = p.c.sendCore(p.subject, payload, hdr)
		if err == nil {
			err = p.c.nc.FlushWithContext(ctx)
		}
		if err == nil {
			glog.V(2).Infof("[natsx] published subject=%s key=%s bytes=%d", p.subject, key, len(payload))
			return nil
		}
		glog.Warningf("[natsx] publish attempt=%d subject=%s err=%v", i, p.subject, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Backoff):
		}
	}
	return fmt.Errorf("nats publish %s: %w", p.subject, err)
}
