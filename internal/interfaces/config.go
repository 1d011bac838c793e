package interfaces

import "time"

// ClientConfig holds common configuration for all login clients.
type ClientConfig struct {
	Target  string
	Port    int
	Timeout time.Duration
	// TLS wraps the transport; no further protocol differences.
	TLS bool
	// VerifyTLS enables certificate verification. Routers ship self-signed
	// certificates, so it is off unless asked for.
	VerifyTLS bool
	// Charset names the wire encoding for words ("" means raw UTF-8).
	Charset string
	// Extra holds service-specific options that don't fit the common config
	Extra map[string]interface{}
}

// NewClientConfig creates a new ClientConfig with sensible defaults.
func NewClientConfig(target string) *ClientConfig {
	return &ClientConfig{
		Target:  target,
		Port:    0, // Must be set by caller or taken from the service default
		Timeout: 5 * time.Second,
		Extra:   make(map[string]interface{}),
	}
}

// Validate checks if the configuration is valid.
func (c *ClientConfig) Validate() error {
	if err := ValidateTarget(c.Target); err != nil {
		return err
	}
	if err := ValidatePort(c.Port); err != nil {
		return err
	}
	if c.Timeout <= 0 {
		return &ValidationError{Field: "timeout", Message: "timeout must be positive"}
	}
	return nil
}
