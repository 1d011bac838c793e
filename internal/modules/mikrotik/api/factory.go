package api

import (
	"github.com/nimda/routeros-brute/internal/interfaces"
)

// Factory creates RouterOS API clients bound to one configuration
type Factory struct {
	cfg interfaces.ClientConfig
}

// NewFactory creates a factory for the given configuration
func NewFactory(cfg interfaces.ClientConfig) *Factory {
	return &Factory{cfg: cfg}
}

// CreateClient creates a new Client instance
func (f *Factory) CreateClient() (interfaces.LoginClient, error) {
	return NewClientFromConfig(f.cfg)
}

// Service returns the service name
func (f *Factory) Service() string {
	if f.cfg.TLS {
		return "api-ssl"
	}
	return "api"
}

func init() {
	_ = interfaces.Register(interfaces.ServiceInfo{
		Name:        "api",
		Description: "MikroTik RouterOS binary API",
		DefaultPort: DefaultPort,
		NewFactory: func(cfg interfaces.ClientConfig) interfaces.ClientFactory {
			cfg.TLS = false
			return NewFactory(cfg)
		},
	})
	_ = interfaces.Register(interfaces.ServiceInfo{
		Name:        "api-ssl",
		Description: "MikroTik RouterOS binary API over TLS",
		DefaultPort: DefaultTLSPort,
		NewFactory: func(cfg interfaces.ClientConfig) interfaces.ClientFactory {
			cfg.TLS = true
			return NewFactory(cfg)
		},
	})
}

var _ interfaces.ClientFactory = (*Factory)(nil)
