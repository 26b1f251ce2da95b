package loadbalance

import (
	"fmt"
	"hash/crc32"
	"sort"
	"sync"

	"go.uber.org/zap"

	"dipc/discovery"
	"dipc/rpcerr"
)

// ConsistentHashBalancer maps keys to instances using a hash ring.
// The same key always maps to the same instance (until the ring changes),
// providing cache affinity — useful for stateful services or local caches.
//
// Virtual nodes: each real instance is mapped to N virtual nodes on the ring.
// Without virtual nodes, 3 instances might cluster together on the ring,
// causing uneven load distribution. 100 virtual nodes per instance ensures
// statistical uniformity.
//
//	Hash Ring:
//	                  0
//	                ╱   ╲
//	              ╱       ╲
//	         B ●               ● A
//	           │    key ◆──►   │   (clockwise to nearest node → A)
//	         C ●               ● A' (virtual node of A)
//	              ╲       ╱
//	                ╲   ╱
//
// Unlike RoundRobinBalancer/WeightedRandomBalancer, a ConsistentHashBalancer
// owns a ring that must be built once (via Add) before Pick is useful, and
// Pick takes a routing key instead of the live instance list — it does not
// implement the Balancer interface.
type ConsistentHashBalancer struct {
	mu       sync.RWMutex
	replicas int                            // Virtual nodes per real instance
	ring     []uint32                       // Sorted hash values on the ring
	nodes    map[uint32]*discovery.Instance // Hash value → instance mapping
	log      *zap.Logger
}

// NewConsistentHashBalancer creates a hash ring with 100 virtual nodes per
// instance. log may be nil.
func NewConsistentHashBalancer(log *zap.Logger) *ConsistentHashBalancer {
	if log == nil {
		log = zap.NewNop()
	}
	return &ConsistentHashBalancer{
		replicas: 100,
		nodes:    make(map[uint32]*discovery.Instance),
		log:      log,
	}
}

// Add places an instance onto the hash ring with N virtual nodes.
// Each virtual node is hashed from "{addr}#{i}" to spread evenly across the
// ring. Safe to call concurrently with Pick as discovery.Watch delivers
// membership changes.
func (b *ConsistentHashBalancer) Add(instance *discovery.Instance) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := 0; i < b.replicas; i++ {
		key := fmt.Sprintf("%s#%d", instance.Addr, i)
		hash := crc32.ChecksumIEEE([]byte(key))
		b.ring = append(b.ring, hash)
		b.nodes[hash] = instance
	}
	sort.Slice(b.ring, func(i, j int) bool {
		return b.ring[i] < b.ring[j]
	})
	b.log.Debug("added instance to hash ring", zap.String("addr", instance.Addr), zap.Int("ring_size", len(b.ring)))
}

// Pick finds the instance responsible for the given key.
// It hashes the key, then binary-searches for the first node >= hash on the
// ring. If the hash is larger than all nodes, it wraps around to the first
// node (ring property).
func (b *ConsistentHashBalancer) Pick(key string) (*discovery.Instance, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(b.ring) == 0 {
		return nil, rpcerr.New(rpcerr.ConnectionLost, "no instances available")
	}

	hash := crc32.ChecksumIEEE([]byte(key))

	idx := sort.Search(len(b.ring), func(i int) bool {
		return b.ring[i] >= hash
	})
	if idx == len(b.ring) {
		idx = 0
	}

	picked := b.nodes[b.ring[idx]]
	b.log.Debug("consistent-hash pick", zap.String("key", key), zap.String("addr", picked.Addr))
	return picked, nil
}

func (b *ConsistentHashBalancer) Name() string {
	return "ConsistentHash"
}
