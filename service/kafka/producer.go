package kafka

import (
	"context"
	"fmt"

	"github.com/Shopify/sarama"
	"github.com/golang/glog"
)

// Producer publishes keyed events to one topic with a sync producer.
type Producer struct {
	client sarama.Client // nil when built around an existing producer
	prod   sarama.SyncProducer
	topic  string
}

// NewProducer connects to the brokers and, when asked, creates the topic.
func NewProducer(c Config) (*Producer, error) {
	if len(c.Brokers) == 0 || c.Topic == "" {
		return nil, fmt.Errorf("kafka brokers and topic are required")
	}
	cfg, err := BuildBaseConfig(c)
	if err != nil {
		return nil, err
	}
	client, err := sarama.NewClient(c.Brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	if c.EnsureTopic {
		admin, err := sarama.NewClusterAdminFromClient(client)
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("kafka admin: %w", err)
		}
		// closing the admin would close the shared client
		if err := EnsureTopic(admin, c.Topic, c.PartitionsPerTopic, c.ReplicationFactor); err != nil {
			_ = client.Close()
			return nil, err
		}
	}
	prod, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	glog.Infof("[kafka] producer ready brokers=%v topic=%s", c.Brokers, c.Topic)
	return &Producer{client: client, prod: prod, topic: c.Topic}, nil
}

// NewProducerWith wraps an existing sync producer.
func NewProducerWith(prod sarama.SyncProducer, topic string) *Producer {
	return &Producer{prod: prod, topic: topic}
}

// Publish sends payload under key. sarama's sync producer does not take a
// context, so ctx is only checked before sending.
func (p *Producer) Publish(ctx context.Context, key string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(payload),
	}
	partition, offset, err := p.prod.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("kafka send %s: %w", p.topic, err)
	}
	glog.V(2).Infof("[kafka] sent topic=%s key=%s partition=%d offset=%d", p.topic, key, partition, offset)
	return nil
}

func (p *Producer) Close() error {
	err := p.prod.Close()
	if p.client != nil && !p.client.Closed() {
		if cerr := p.client.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
