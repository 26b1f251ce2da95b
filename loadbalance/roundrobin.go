package loadbalance

import (
	"sync/atomic"

	"go.uber.org/zap"

	"dipc/discovery"
	"dipc/rpcerr"
)

// RoundRobinBalancer distributes requests evenly across all instances in order.
// Uses an atomic counter for lock-free, goroutine-safe operation.
//
// Best for: stateless services where all instances have similar capacity.
type RoundRobinBalancer struct {
	counter int64 // Atomic counter, incremented on each Pick()
	log     *zap.Logger
}

// NewRoundRobinBalancer creates a round-robin balancer that logs each pick
// at Debug level.
func NewRoundRobinBalancer(log *zap.Logger) *RoundRobinBalancer {
	if log == nil {
		log = zap.NewNop()
	}
	return &RoundRobinBalancer{log: log}
}

// Pick selects the next instance in round-robin order.
// The atomic counter ensures even distribution without locks.
func (b *RoundRobinBalancer) Pick(instances []discovery.Instance) (*discovery.Instance, error) {
	if len(instances) == 0 {
		return nil, rpcerr.New(rpcerr.ConnectionLost, "no instances available")
	}
	index := atomic.AddInt64(&b.counter, 1) % int64(len(instances))
	picked := &instances[index]
	b.log.Debug("round-robin pick", zap.String("addr", picked.Addr), zap.String("version", picked.Version))
	return picked, nil
}

func (b *RoundRobinBalancer) Name() string {
	return "RoundRobin"
}
