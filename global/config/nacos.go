package config

import (
	"fmt"

	"github.com/nacos-group/nacos-sdk-go/v2/clients"
	"github.com/nacos-group/nacos-sdk-go/v2/common/constant"
	"github.com/nacos-group/nacos-sdk-go/v2/vo"
)

// configClient is the slice of the nacos config client this package uses.
type configClient interface {
	GetConfig(param vo.ConfigParam) (string, error)
	ListenConfig(param vo.ConfigParam) error
	CancelListenConfig(param vo.ConfigParam) error
}

// NacosSource reads a YAML document from Nacos and watches it for changes.
type NacosSource struct {
	cfg    NacosConfig
	client configClient
}

func NewNacosSource(cfg NacosConfig) (*NacosSource, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("nacos host and data_id are required")
	}
	serverConfigs := []constant.ServerConfig{
		*constant.NewServerConfig(cfg.Host, cfg.Port),
	}
	clientConfig := *constant.NewClientConfig(
		constant.WithTimeoutMs(cfg.TimeoutMs),
		constant.WithNamespaceId(cfg.NamespaceID),
		constant.WithNotLoadCacheAtStart(true),
		constant.WithLogLevel("warn"),
	)
	cli, err := clients.NewConfigClient(vo.NacosClientParam{
		ClientConfig:  &clientConfig,
		ServerConfigs: serverConfigs,
	})
	if err != nil {
		return nil, fmt.Errorf("nacos config client: %w", err)
	}
	return &NacosSource{cfg: cfg, client: cli}, nil
}

func (s *NacosSource) param() vo.ConfigParam {
	return vo.ConfigParam{DataId: s.cfg.DataID, Group: s.cfg.Group}
}

// Fetch returns the current remote document.
func (s *NacosSource) Fetch() ([]byte, error) {
	content, err := s.client.GetConfig(s.param())
	if err != nil {
		return nil, fmt.Errorf("nacos get %s/%s: %w", s.cfg.Group, s.cfg.DataID, err)
	}
	return []byte(content), nil
}

// ApplyTo layers the remote document over cfg.
func (s *NacosSource) ApplyTo(cfg *AppConfig) error {
	raw, err := s.Fetch()
	if err != nil {
		return err
	}
	return cfg.ApplyYAML(raw)
}

// Watch calls onChange with every new version of the document. Only settings
// that are safe to swap at runtime should be read from it.
func (s *NacosSource) Watch(onChange func(raw []byte)) error {
	p := s.param()
	p.OnChange = func(_, _, _, data string) {
		onChange([]byte(data))
	}
	return s.client.ListenConfig(p)
}

func (s *NacosSource) Close() error {
	return s.client.CancelListenConfig(s.param())
}
