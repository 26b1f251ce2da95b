// Package loadbalance provides load balancing strategies for picking among
// discovery-returned instances before a client dials one with rpcclient.
//
// Three strategies are implemented:
//   - RoundRobin:      Stateless services, equal-capacity instances
//   - WeightedRandom:  Heterogeneous instances (different CPU/memory)
//   - ConsistentHash:  Stateful services requiring cache affinity
package loadbalance

import "dipc/discovery"

// Balancer is the interface for load balancing strategies.
// The caller invokes Pick() before each call to select a target instance.
// A Pick failure (no instances available) is an rpcerr.ConnectionLost: the
// caller has nothing to dial, which is the same condition rpcclient reports
// for an already-lost connection.
type Balancer interface {
	// Pick selects one instance from the available list.
	// Called on every call — must be goroutine-safe.
	Pick(instances []discovery.Instance) (*discovery.Instance, error)

	// Name returns the strategy name (for logging/debugging).
	Name() string
}

// FilterByVersion narrows instances down to those advertising exactly
// version, for canary or rolling-upgrade routing where a caller wants to
// pin traffic to one release rather than letting a balancer spread it
// across whatever discovery currently returns. An empty version is a
// no-op (all instances pass).
func FilterByVersion(instances []discovery.Instance, version string) []discovery.Instance {
	if version == "" {
		return instances
	}
	out := make([]discovery.Instance, 0, len(instances))
	for _, inst := range instances {
		if inst.Version == version {
			out = append(out, inst)
		}
	}
	return out
}
