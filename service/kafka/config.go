package kafka

import (
	"fmt"
	"strings"
	"time"

	"github.com/Shopify/sarama"
)

type Config struct {
	Brokers             []string
	Topic               string
	Version             string // e.g. "2.8.0"
	ProducerRetries     int
	ProducerCompression string // none/snappy/lz4/zstd
	EnsureTopic         bool
	PartitionsPerTopic  int32
	ReplicationFactor   int16
}

// BuildBaseConfig returns the sarama config for a keyed, acknowledged sync
// producer.
func BuildBaseConfig(c Config) (*sarama.Config, error) {
	cfg := sarama.NewConfig()
	if c.Version != "" {
		v, err := sarama.ParseKafkaVersion(c.Version)
		if err != nil {
			return nil, fmt.Errorf("kafka version %q: %w", c.Version, err)
		}
		cfg.Version = v
	}

	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	if c.ProducerRetries <= 0 {
		c.ProducerRetries = 1
	}
	cfg.Producer.Retry.Max = c.ProducerRetries
	// same key, same partition: events of one conversation stay ordered
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	switch strings.ToLower(c.ProducerCompression) {
	case "snappy":
		cfg.Producer.Compression = sarama.CompressionSnappy
	case "lz4":
		cfg.Producer.Compression = sarama.CompressionLZ4
	case "zstd":
		cfg.Producer.Compression = sarama.CompressionZSTD
	default:
		cfg.Producer.Compression = sarama.CompressionNone
	}

	cfg.Net.DialTimeout = 10 * time.Second
	cfg.Net.ReadTimeout = 30 * time.Second
	cfg.Net.WriteTimeout = 30 * time.Second
	return cfg, nil
}
