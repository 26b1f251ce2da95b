// Package discovery provides service discovery for DIPC servers: a small
// Registry interface plus an etcd-backed implementation multi-instance
// deployments register into and clients poll for addresses to dial.
package discovery

// Instance is one discovered endpoint a load balancer can pick between.
type Instance struct {
	Addr    string
	Weight  int // relative weight for weighted load balancing
	Version string
}

// Registry is the service-discovery backend contract.
type Registry interface {
	// Register advertises an instance of service, with a TTL (seconds)
	// lease that the implementation is responsible for keeping alive.
	Register(service string, instance Instance, ttlSeconds int64) error
	// Deregister removes a previously registered instance.
	Deregister(service string, addr string) error
	// Discover returns all currently registered instances for service.
	Discover(service string) ([]Instance, error)
	// Watch emits the full updated instance list for service whenever
	// registrations or deregistrations occur.
	Watch(service string) <-chan []Instance
}
