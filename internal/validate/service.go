package validate

import (
	"context"
	"fmt"
	"time"

	"github.com/nimda/routeros-brute/internal/interfaces"
)

// ServiceValidator re-checks a credential with one login against any
// registered router service, e.g. "webfig" or "rest".
type ServiceValidator struct {
	info    interfaces.ServiceInfo
	port    int
	timeout time.Duration
}

// NewServiceValidator creates a validator for a registered service. Port 0
// means the service default.
func NewServiceValidator(info interfaces.ServiceInfo, port int, timeout time.Duration) *ServiceValidator {
	if port == 0 {
		port = info.DefaultPort
	}
	return &ServiceValidator{info: info, port: port, timeout: timeout}
}

// Name returns the service name
func (v *ServiceValidator) Name() string {
	return v.info.Name
}

// Validate performs a single login. Rejections and circuit-level failures
// are both reported as (false, nil); only errors leave the result unknown.
func (v *ServiceValidator) Validate(ctx context.Context, host, username, password string) (bool, error) {
	cfg := interfaces.NewClientConfig(host)
	cfg.Port = v.port
	if v.timeout > 0 {
		cfg.Timeout = v.timeout
	}
	if err := cfg.Validate(); err != nil {
		return false, err
	}

	client, err := v.info.NewFactory(*cfg).CreateClient()
	if err != nil {
		return false, fmt.Errorf("create %s client: %w", v.info.Name, err)
	}
	outcome, err := client.Login(ctx, username, password)
	if err != nil {
		return false, err
	}
	return outcome == interfaces.OutcomeSuccess, nil
}

var _ interfaces.CredentialValidator = (*ServiceValidator)(nil)
