package global

import (
	"context"
	"fmt"
	"io"
	"time"

	"PSocial/data/database/mgo/mongoutil"
	appcfg "PSocial/global/config"
	"PSocial/logger"
	"PSocial/module/chat/store"
	ka "PSocial/service/kafka"
	mgoSrv "PSocial/service/mgo"
	"PSocial/service/natsx"
	redisSrv "PSocial/service/storage/redis"
	"PSocial/tools/ids"

	"github.com/golang/glog"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// EventPublisher is a message-event sink that owns a connection.
type EventPublisher interface {
	Publish(ctx context.Context, key string, payload []byte) error
	io.Closer
}

// Stores is what the storage layer hands to the gateway and the REST side.
type Stores struct {
	Conversations store.ConversationStore
	Messages      store.MessageStore
	Users         store.UserDirectory
	Ready         func() error // nil error once storage can serve
	Close         func()
}

func ConfigIds(cfg *appcfg.AppConfig) error {
	return ids.SetNodeID(cfg.Server.NodeID)
}

func ConfigLogger(cfg *appcfg.AppConfig) {
	if err := logger.SetLevel(cfg.Log.Level); err != nil {
		logger.Warn("keep log level", zap.String("level", logger.Level()), zap.Error(err))
	}
}

// ConfigNacos layers the remote document over cfg and keeps following it for
// log level changes. The returned source is nil when nacos is not configured.
func ConfigNacos(cfg *appcfg.AppConfig) (*appcfg.NacosSource, error) {
	if !cfg.Nacos.Enabled() {
		return nil, nil
	}
	src, err := appcfg.NewNacosSource(cfg.Nacos)
	if err != nil {
		return nil, err
	}
	if err := src.ApplyTo(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("nacos config: %w", err)
	}
	err = src.Watch(func(raw []byte) {
		next := &appcfg.AppConfig{}
		if err := next.ApplyYAML(raw); err != nil {
			logger.Warn("nacos update ignored", zap.Error(err))
			return
		}
		if next.Log.Level == "" {
			return
		}
		ConfigLogger(next)
		logger.Info("nacos update applied", zap.String("log_level", logger.Level()))
	})
	if err != nil {
		logger.Warn("nacos watch failed", zap.Error(err))
	}
	return src, nil
}

// ConfigRedis returns nil when the profile cache is disabled.
func ConfigRedis(ctx context.Context, cfg *appcfg.AppConfig) (*redis.Client, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	return redisSrv.NewClient(ctx, redisSrv.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
}

// ConfigStorage builds the stores for storage.driver. With mongo it waits up
// to the connect timeout for the first connection and creates the indexes;
// the manager keeps reconnecting in the background after that.
func ConfigStorage(ctx context.Context, cfg *appcfg.AppConfig, rdb *redis.Client) (*Stores, error) {
	var st *Stores
	switch cfg.Storage.Driver {
	case appcfg.StorageMemory:
		mem := store.NewMemory()
		st = &Stores{
			Conversations: mem,
			Messages:      mem,
			Users:         store.NewMemoryUsers(),
			Ready:         func() error { return nil },
			Close:         func() {},
		}
	default:
		m, err := ConfigMgo(ctx, cfg)
		if err != nil {
			return nil, err
		}
		st = &Stores{
			Conversations: store.NewMongoConversations(m),
			Messages:      store.NewMongoMessages(m),
			Users:         store.NewMongoUsers(m),
			Ready: func() error {
				_, err := m.DB()
				return err
			},
			Close: m.Close,
		}
	}
	if rdb != nil {
		st.Users = store.NewCachedUsers(st.Users, rdb, cfg.Redis.ProfileTTL)
	}
	return st, nil
}

func ConfigMgo(ctx context.Context, cfg *appcfg.AppConfig) (*mgoSrv.Manager, error) {
	mc := &mongoutil.Config{
		Uri:            cfg.Mongo.URI,
		Address:        cfg.Mongo.Address,
		Database:       cfg.Mongo.Database,
		Username:       cfg.Mongo.Username,
		Password:       cfg.Mongo.Password,
		AuthSource:     cfg.Mongo.AuthSource,
		MaxPoolSize:    cfg.Mongo.MaxPoolSize,
		MaxRetry:       cfg.Mongo.MaxRetry,
		ConnectTimeout: cfg.Mongo.ConnectTimeout,
	}
	if err := mc.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}

	m := mgoSrv.NewManager()
	m.StartAsync(ctx, mc)

	waitCtx, cancel := context.WithTimeout(ctx, cfg.Mongo.ConnectTimeout)
	defer cancel()
	if err := m.WaitReady(waitCtx); err != nil {
		m.Close()
		return nil, fmt.Errorf("mongo: %w", err)
	}
	db, err := m.DB()
	if err != nil {
		m.Close()
		return nil, err
	}
	idxCtx, cancelIdx := context.WithTimeout(ctx, 30*time.Second)
	defer cancelIdx()
	if err := store.EnsureIndexes(idxCtx, db); err != nil {
		m.Close()
		return nil, err
	}
	logger.Info("mongo ready", zap.String("db", cfg.Mongo.Database))
	return m, nil
}

// ConfigEvents returns nil when events.driver is none.
func ConfigEvents(cfg *appcfg.AppConfig) (EventPublisher, error) {
	ev := cfg.Events
	switch ev.Driver {
	case appcfg.EventsNats:
		c, err := natsx.NewNatsxClient(natsx.NatsxConfig{
			Servers: ev.Nats.Servers,
			Name:    ev.Nats.Name,
			User:    ev.Nats.User,
			Pass:    ev.Nats.Pass,
		})
		if err != nil {
			return nil, err
		}
		glog.Infof("[events] nats subject=%s", ev.Subject)
		return &natsPublisher{NatsxProducer: natsx.NewNatsxProducer(c, ev.Subject), client: c}, nil
	case appcfg.EventsKafka:
		p, err := ka.NewProducer(ka.Config{
			Brokers:             ev.Kafka.Brokers,
			Topic:               ev.Kafka.Topic,
			Version:             ev.Kafka.Version,
			ProducerRetries:     ev.Kafka.Retries,
			ProducerCompression: ev.Kafka.Compression,
			EnsureTopic:         ev.Kafka.EnsureTopic,
			PartitionsPerTopic:  ev.Kafka.Partitions,
			ReplicationFactor:   ev.Kafka.ReplicationFactor,
		})
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, nil
	}
}

type natsPublisher struct {
	*natsx.NatsxProducer
	client *natsx.NatsxClient
}

func (p *natsPublisher) Close() error { return p.client.Close() }
