package mgo

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	mgo "PSocial/data/database/mgo/mongoutil"
	"PSocial/logger"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

var ErrNotReady = errors.New("mongo not ready")

// Manager keeps one Mongo client alive: it connects with backoff, pings on an
// interval and reconnects after repeated ping failures.
type Manager struct {
	mu        sync.RWMutex
	client    *mgo.Client
	readyCh   chan struct{} // closed on the first successful connect
	readyOnce sync.Once
	lastErr   atomic.Value // error

	connect     func(ctx context.Context, cfg *mgo.Config) (*mgo.Client, error)
	healthEvery time.Duration
}

func NewManager() *Manager {
	return &Manager{
		readyCh:     make(chan struct{}),
		connect:     mgo.NewMongoDB,
		healthEvery: 10 * time.Second,
	}
}

// StartAsync runs until ctx is done.
func (m *Manager) StartAsync(ctx context.Context, cfg *mgo.Config) {
	go m.run(ctx, cfg)
}

func (m *Manager) run(ctx context.Context, cfg *mgo.Config) {
	const (
		baseBackoff = 200 * time.Millisecond
		maxBackoff  = 5 * time.Second
		failThresh  = 3
	)

	for {
		attempt := 0
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			cli, err := m.connect(ctx, cfg)
			if err == nil {
				m.mu.Lock()
				m.client = cli
				m.mu.Unlock()
				m.readyOnce.Do(func() { close(m.readyCh) })
				logger.Info("[mongo] connected", zap.String("database", cfg.Database))
				break
			}

			m.lastErr.Store(err)
			logger.Warn("[mongo] connect failed", zap.Int("attempt", attempt), zap.Error(err))

			backoff := baseBackoff << attempt
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			jitter := time.Duration(rand.Int63n(int64(backoff/5) + 1))
			timer := time.NewTimer(backoff - jitter/2)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			if attempt < 6 {
				attempt++
			}
		}

		if !m.watch(ctx, failThresh) {
			return
		}
	}
}

// watch pings until ctx ends (returns false) or the connection is judged lost
// (returns true so the caller reconnects).
func (m *Manager) watch(ctx context.Context, failThresh int) bool {
	fail := 0
	ticker := time.NewTicker(m.healthEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.drop()
			return false
		case <-ticker.C:
			m.mu.RLock()
			c := m.client
			m.mu.RUnlock()
			if c == nil {
				return true
			}
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err == nil {
				fail = 0
				continue
			}
			fail++
			m.lastErr.Store(err)
			logger.Warn("[mongo] ping failed", zap.Int("fail", fail), zap.Error(err))
			if fail >= failThresh {
				m.drop()
				return true
			}
		}
	}
}

func (m *Manager) drop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.client != nil {
		_ = m.client.Close(context.Background())
		m.client = nil
	}
}

// Ready is closed after the first successful connect.
func (m *Manager) Ready() <-chan struct{} {
	return m.readyCh
}

// WaitReady blocks until the first connect succeeds or ctx ends.
func (m *Manager) WaitReady(ctx context.Context) error {
	select {
	case <-m.readyCh:
		return nil
	case <-ctx.Done():
		if err := m.Err(); err != nil {
			return errors.Join(ctx.Err(), err)
		}
		return ctx.Err()
	}
}

// Err returns the most recent connect or ping error.
func (m *Manager) Err() error {
	if v := m.lastErr.Load(); v != nil {
		return v.(error)
	}
	return nil
}

// DB returns the current database handle.
func (m *Manager) DB() (*mongo.Database, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.client == nil {
		return nil, ErrNotReady
	}
	return m.client.GetDB(), nil
}

// Close disconnects the current client.
func (m *Manager) Close() {
	m.drop()
}
