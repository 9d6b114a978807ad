package registry

import (
	"sort"
	"sync"

	"github.com/patwie/roscore-go/internal/logging"
)

type serviceProvider struct {
	callerID   string
	callerAPI  string
	serviceAPI string
}

// ServiceRegistry is Component C: a service name maps to at most one
// provider at a time, last-write-wins. Services never generate push
// notifications; callers discover the current provider by calling
// lookupService at call time.
type ServiceRegistry struct {
	mu        sync.Mutex
	providers map[string]serviceProvider
	log       loggerFunc
}

// NewServiceRegistry returns an empty service registry.
func NewServiceRegistry() *ServiceRegistry {
	return &ServiceRegistry{
		providers: map[string]serviceProvider{},
		log:       logging.Module(logging.ModuleService),
	}
}

// Register installs (and, if one is already present, replaces) the
// provider for service. Always succeeds, matching the ROS master's
// registerService, which always returns 1.
func (r *ServiceRegistry) Register(callerID, service, serviceAPI, callerAPI string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prior, ok := r.providers[service]; ok && prior.callerID != callerID {
		r.log.Debugf("%s replaced %s as provider of %s", callerID, prior.callerID, service)
	}
	r.providers[service] = serviceProvider{callerID: callerID, callerAPI: callerAPI, serviceAPI: serviceAPI}
}

// Unregister removes the provider for service only if callerID and
// serviceAPI both match the one currently stored.
func (r *ServiceRegistry) Unregister(callerID, service, serviceAPI string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.providers[service]
	if !ok || p.callerID != callerID || p.serviceAPI != serviceAPI {
		r.log.Debugf("unregister %s from %s: no matching provider", callerID, service)
		return false
	}
	delete(r.providers, service)
	return true
}

// Lookup returns the current provider's service-URI, if any.
func (r *ServiceRegistry) Lookup(service string) (serviceAPI string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.providers[service]
	if !ok {
		return "", false
	}
	return p.serviceAPI, true
}

// LookupNode searches for callerID among registered providers and
// returns its slave API URI (the same one it registered with).
func (r *ServiceRegistry) LookupNode(callerID string) (uri string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.providers {
		if p.callerID == callerID {
			return p.callerAPI, true
		}
	}
	return "", false
}

// Count returns the number of services with a registered provider.
func (r *ServiceRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.providers)
}

// SystemState feeds getSystemState's third element: one entry per
// service, its single provider's caller-id in a one-element list.
func (r *ServiceRegistry) SystemState() []NameCallers {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]NameCallers, 0, len(r.providers))
	for name, p := range r.providers {
		out = append(out, NameCallers{Name: name, CallerIDs: []string{p.callerID}})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
