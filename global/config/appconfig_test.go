package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nacos-group/nacos-sdk-go/v2/vo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9000"
  allowed_origins: ["https://a.example", "https://b.example"]
gateway:
  send_timeout: 3s
storage:
  driver: memory
events:
  driver: nats
  nats:
    servers: ["nats://n1:4222"]
`), 0o600))

	t.Setenv("PSOCIAL_GATEWAY__WORKERS", "8")
	t.Setenv("PSOCIAL_REDIS__ENABLED", "true")
	t.Setenv("PSOCIAL_EVENTS__NATS__SERVERS", "nats://x:1,nats://y:2")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 3*time.Second, cfg.Gateway.SendTimeout)
	assert.Equal(t, 8, cfg.Gateway.Workers)
	assert.Equal(t, StorageMemory, cfg.Storage.Driver)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, []string{"nats://x:1", "nats://y:2"}, cfg.Events.Nats.Servers)
	// untouched defaults survive
	assert.Equal(t, 25*time.Second, cfg.Gateway.PingInterval)
	assert.Equal(t, "psocial", cfg.Mongo.Database)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(c *AppConfig){
		"bad storage":      func(c *AppConfig) { c.Storage.Driver = "sqlite" },
		"bad events":       func(c *AppConfig) { c.Events.Driver = "rabbit" },
		"kafka no topic":   func(c *AppConfig) { c.Events.Driver = EventsKafka; c.Events.Kafka.Topic = "" },
		"ping after pong":  func(c *AppConfig) { c.Gateway.PingInterval = c.Gateway.PongWait },
		"zero timeout":     func(c *AppConfig) { c.Gateway.SendTimeout = 0 },
		"node id range":    func(c *AppConfig) { c.Server.NodeID = 4096 },
		"no mongo db":      func(c *AppConfig) { c.Mongo.Database = "" },
		"empty jwt secret": func(c *AppConfig) { c.Auth.Secret = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := Default()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

type fakeNacos struct {
	content  string
	listened vo.ConfigParam
	canceled bool
}

func (f *fakeNacos) GetConfig(vo.ConfigParam) (string, error) { return f.content, nil }
func (f *fakeNacos) ListenConfig(p vo.ConfigParam) error {
	f.listened = p
	return nil
}
func (f *fakeNacos) CancelListenConfig(vo.ConfigParam) error {
	f.canceled = true
	return nil
}

func TestNacosSourceApplyAndWatch(t *testing.T) {
	fake := &fakeNacos{content: "log:\n  level: warn\n"}
	src := &NacosSource{cfg: NacosConfig{Host: "h", DataID: "psocial.yaml", Group: "G"}, client: fake}

	cfg := Default()
	require.NoError(t, src.ApplyTo(cfg))
	assert.Equal(t, "warn", cfg.Log.Level)

	var got []byte
	require.NoError(t, src.Watch(func(raw []byte) { got = raw }))
	assert.Equal(t, "psocial.yaml", fake.listened.DataId)
	fake.listened.OnChange("ns", "G", "psocial.yaml", "log:\n  level: error\n")
	assert.Equal(t, "log:\n  level: error\n", string(got))

	require.NoError(t, src.Close())
	assert.True(t, fake.canceled)
}
