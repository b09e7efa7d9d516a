package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"PSocial/tools/decode"

	"gopkg.in/yaml.v3"
)

const EnvPrefix = "PSOCIAL_"

const (
	StorageMongo  = "mongo"
	StorageMemory = "memory"

	EventsNone  = "none"
	EventsNats  = "nats"
	EventsKafka = "kafka"
)

type AppConfig struct {
	Server  ServerConfig  `mapstructure:"server"`
	Gateway GatewayConfig `mapstructure:"gateway"`
	Storage StorageConfig `mapstructure:"storage"`
	Mongo   MongoConfig   `mapstructure:"mongo"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Events  EventsConfig  `mapstructure:"events"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Nacos   NacosConfig   `mapstructure:"nacos"`
	Log     LogConfig     `mapstructure:"log"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	NodeID          int64         `mapstructure:"node_id"` // snowflake node, 0..1023
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type GatewayConfig struct {
	SendTimeout     time.Duration `mapstructure:"send_timeout"` // budget for one send, store round trips included
	Workers         int           `mapstructure:"workers"`      // send worker pool size
	SendQueueSize   int           `mapstructure:"send_queue_size"`
	MaxMessageBytes int64         `mapstructure:"max_message_bytes"`
	WriteWait       time.Duration `mapstructure:"write_wait"`
	PongWait        time.Duration `mapstructure:"pong_wait"`
	PingInterval    time.Duration `mapstructure:"ping_interval"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"` // mongo | memory
}

type MongoConfig struct {
	URI            string        `mapstructure:"uri"`
	Address        []string      `mapstructure:"address"`
	Database       string        `mapstructure:"database"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	AuthSource     string        `mapstructure:"auth_source"`
	MaxPoolSize    int           `mapstructure:"max_pool_size"`
	MaxRetry       int           `mapstructure:"max_retry"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

type RedisConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Addr       string        `mapstructure:"addr"`
	Password   string        `mapstructure:"password"`
	DB         int           `mapstructure:"db"`
	PoolSize   int           `mapstructure:"pool_size"`
	ProfileTTL time.Duration `mapstructure:"profile_ttl"` // user display profile cache
}

type EventsConfig struct {
	Driver  string      `mapstructure:"driver"` // none | nats | kafka
	Subject string      `mapstructure:"subject"`
	Nats    NatsConfig  `mapstructure:"nats"`
	Kafka   KafkaConfig `mapstructure:"kafka"`
}

type NatsConfig struct {
	Servers []string `mapstructure:"servers"`
	Name    string   `mapstructure:"name"`
	User    string   `mapstructure:"user"`
	Pass    string   `mapstructure:"pass"`
}

type KafkaConfig struct {
	Brokers           []string `mapstructure:"brokers"`
	Topic             string   `mapstructure:"topic"`
	Version           string   `mapstructure:"version"`
	Retries           int      `mapstructure:"retries"`
	Compression       string   `mapstructure:"compression"` // none | snappy | lz4 | zstd
	EnsureTopic       bool     `mapstructure:"ensure_topic"`
	Partitions        int32    `mapstructure:"partitions"`
	ReplicationFactor int16    `mapstructure:"replication_factor"`
}

type AuthConfig struct {
	Secret string `mapstructure:"secret"`
	Alg    string `mapstructure:"alg"`
}

type NacosConfig struct {
	Host        string `mapstructure:"host"`
	Port        uint64 `mapstructure:"port"`
	NamespaceID string `mapstructure:"namespace_id"`
	DataID      string `mapstructure:"data_id"`
	Group       string `mapstructure:"group"`
	TimeoutMs   uint64 `mapstructure:"timeout_ms"`
}

func (n NacosConfig) Enabled() bool { return n.Host != "" && n.DataID != "" }

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Addr:            ":8080",
			NodeID:          1,
			AllowedOrigins:  []string{"http://localhost:5173"},
			ShutdownTimeout: 10 * time.Second,
		},
		Gateway: GatewayConfig{
			SendTimeout:     10 * time.Second,
			Workers:         256,
			SendQueueSize:   256,
			MaxMessageBytes: 64 << 10,
			WriteWait:       10 * time.Second,
			PongWait:        60 * time.Second,
			PingInterval:    25 * time.Second,
		},
		Storage: StorageConfig{Driver: StorageMongo},
		Mongo: MongoConfig{
			URI:            "mongodb://localhost:27017",
			Database:       "psocial",
			MaxPoolSize:    20,
			MaxRetry:       3,
			ConnectTimeout: 30 * time.Second,
		},
		Redis: RedisConfig{
			Addr:       "127.0.0.1:6379",
			PoolSize:   20,
			ProfileTTL: 5 * time.Minute,
		},
		Events: EventsConfig{
			Driver:  EventsNone,
			Subject: "psocial.chat.message.created",
			Nats:    NatsConfig{Servers: []string{"nats://127.0.0.1:4222"}, Name: "psocial-gateway"},
			Kafka: KafkaConfig{
				Brokers:           []string{"127.0.0.1:9092"},
				Topic:             "psocial-chat-message-created",
				Version:           "2.8.0",
				Retries:           3,
				Compression:       "snappy",
				Partitions:        8,
				ReplicationFactor: 1,
			},
		},
		Auth: AuthConfig{Secret: "secret", Alg: "HS256"},
		Nacos: NacosConfig{
			Port:      8848,
			Group:     "DEFAULT_GROUP",
			TimeoutMs: 5000,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load builds the configuration from defaults, the YAML file at path (when
// non-empty) and PSOCIAL_* environment variables, in that order.
func Load(path string) (*AppConfig, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := cfg.ApplyYAML(raw); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.Environ()); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyYAML layers a YAML document over the current values.
func (c *AppConfig) ApplyYAML(raw []byte) error {
	m := map[string]any{}
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	if len(m) == 0 {
		return nil
	}
	return c.apply(m)
}

// ApplyEnv layers KEY=VALUE pairs with the PSOCIAL_ prefix. Nesting uses a
// double underscore: PSOCIAL_GATEWAY__SEND_TIMEOUT=5s sets gateway.send_timeout.
func (c *AppConfig) ApplyEnv(environ []string) error {
	m := map[string]any{}
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(k, EnvPrefix) {
			continue
		}
		path := strings.Split(strings.ToLower(strings.TrimPrefix(k, EnvPrefix)), "__")
		setPath(m, path, v)
	}
	if len(m) == 0 {
		return nil
	}
	return c.apply(m)
}

func (c *AppConfig) apply(m map[string]any) error {
	return decode.Into(m, c, decode.Options{TagName: "mapstructure", WeaklyTypedInput: true})
}

func setPath(m map[string]any, path []string, v string) {
	for i, p := range path {
		if p == "" {
			return
		}
		if i == len(path)-1 {
			m[p] = v
			return
		}
		next, ok := m[p].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[p] = next
		}
		m = next
	}
}

func (c *AppConfig) Validate() error {
	switch c.Storage.Driver {
	case StorageMongo:
		if c.Mongo.Database == "" {
			return fmt.Errorf("mongo.database is required")
		}
		if c.Mongo.URI == "" && len(c.Mongo.Address) == 0 {
			return fmt.Errorf("mongo.uri or mongo.address is required")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("storage.driver %q: want %s or %s", c.Storage.Driver, StorageMongo, StorageMemory)
	}

	switch c.Events.Driver {
	case "", EventsNone:
	case EventsNats:
		if len(c.Events.Nats.Servers) == 0 {
			return fmt.Errorf("events.nats.servers is required")
		}
	case EventsKafka:
		if len(c.Events.Kafka.Brokers) == 0 || c.Events.Kafka.Topic == "" {
			return fmt.Errorf("events.kafka.brokers and events.kafka.topic are required")
		}
	default:
		return fmt.Errorf("events.driver %q: want none, nats or kafka", c.Events.Driver)
	}

	if c.Server.NodeID < 0 || c.Server.NodeID > 1023 {
		return fmt.Errorf("server.node_id %d out of range", c.Server.NodeID)
	}
	g := c.Gateway
	if g.SendTimeout <= 0 || g.WriteWait <= 0 || g.PongWait <= 0 || g.PingInterval <= 0 {
		return fmt.Errorf("gateway timeouts must be positive")
	}
	if g.PingInterval >= g.PongWait {
		return fmt.Errorf("gateway.ping_interval (%s) must be shorter than gateway.pong_wait (%s)", g.PingInterval, g.PongWait)
	}
	if g.Workers <= 0 || g.SendQueueSize <= 0 {
		return fmt.Errorf("gateway.workers and gateway.send_queue_size must be positive")
	}
	if c.Auth.Secret == "" {
		return fmt.Errorf("auth.secret is required")
	}
	return nil
}
