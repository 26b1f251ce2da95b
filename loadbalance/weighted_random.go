package loadbalance

import (
	"math/rand"

	"go.uber.org/zap"

	"dipc/discovery"
	"dipc/rpcerr"
)

// WeightedRandomBalancer picks an instance with probability proportional to
// its Weight, favoring heterogeneous deployments where instances differ in
// capacity (CPU/memory) and should receive traffic in proportion to that.
type WeightedRandomBalancer struct {
	log *zap.Logger
}

// NewWeightedRandomBalancer creates a weighted-random balancer that logs
// each pick at Debug level.
func NewWeightedRandomBalancer(log *zap.Logger) *WeightedRandomBalancer {
	if log == nil {
		log = zap.NewNop()
	}
	return &WeightedRandomBalancer{log: log}
}

func (b *WeightedRandomBalancer) Pick(instances []discovery.Instance) (*discovery.Instance, error) {
	if len(instances) == 0 {
		return nil, rpcerr.New(rpcerr.ConnectionLost, "no instances available")
	}

	totalWeight := 0
	for _, v := range instances {
		totalWeight += v.Weight
	}
	if totalWeight <= 0 {
		return nil, rpcerr.New(rpcerr.ConnectionLost, "no instances with positive weight")
	}

	// Draw a point in [0, totalWeight) and walk the instances, subtracting
	// each one's weight, until the point falls within one's share.
	r := rand.Intn(totalWeight)
	for i := range instances {
		r -= instances[i].Weight
		if r < 0 {
			b.log.Debug("weighted-random pick", zap.String("addr", instances[i].Addr), zap.Int("weight", instances[i].Weight))
			return &instances[i], nil
		}
	}

	// Unreachable as long as totalWeight matches the sum of weights above.
	return nil, rpcerr.New(rpcerr.InternalError, "weighted random selection fell through")
}

func (b *WeightedRandomBalancer) Name() string {
	return "WeightedRandom"
}
