package interfaces

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ServiceInfo holds information about a supported login service.
type ServiceInfo struct {
	// Name is the service identifier (e.g., "api").
	Name string

	// Description is a human-readable description of the service.
	Description string

	// DefaultPort is the default port for this service.
	DefaultPort int

	// NewFactory binds a client factory to a configuration.
	NewFactory func(cfg ClientConfig) ClientFactory
}

// ServiceRegistry manages registered services.
type ServiceRegistry struct {
	mu       sync.RWMutex
	services map[string]ServiceInfo
}

// NewServiceRegistry creates a new service registry.
func NewServiceRegistry() *ServiceRegistry {
	return &ServiceRegistry{
		services: make(map[string]ServiceInfo),
	}
}

// Register adds a service to the registry.
func (r *ServiceRegistry) Register(info ServiceInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if info.Name == "" {
		return fmt.Errorf("service name cannot be empty")
	}
	if info.NewFactory == nil {
		return fmt.Errorf("service factory cannot be nil")
	}
	if _, exists := r.services[info.Name]; exists {
		return fmt.Errorf("service %q already registered", info.Name)
	}

	r.services[info.Name] = info
	return nil
}

// Get returns the service info for the given name.
func (r *ServiceRegistry) Get(name string) (ServiceInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.services[name]
	return info, ok
}

// List returns all registered service names.
func (r *ServiceRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve looks up every named service, failing on the first unknown one.
func (r *ServiceRegistry) Resolve(names []string) ([]ServiceInfo, error) {
	infos := make([]ServiceInfo, 0, len(names))
	for _, name := range names {
		info, ok := r.Get(strings.TrimSpace(name))
		if !ok {
			return nil, &ValidationError{
				Field:   "services",
				Message: fmt.Sprintf("unknown service %q (known: %s)", name, strings.Join(r.List(), ", ")),
			}
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// DefaultRegistry is the global service registry.
var DefaultRegistry = NewServiceRegistry()

// Register is a convenience function to register a service with the default registry.
func Register(info ServiceInfo) error {
	return DefaultRegistry.Register(info)
}
