// Package discovery's etcd backend.
//
// etcd is a distributed key-value store that provides strong consistency
// (Raft protocol). We use it as a "distributed phonebook" for DIPC
// servers:
//
//	Key:   /dipc/{service}/{addr}
//	Value: JSON-encoded Instance
//
// Registration uses TTL-based leases: if a server crashes, its lease
// expires and the entry is automatically removed, preventing "ghost"
// instances a balancer could still pick.
package discovery

import (
	"context"
	"encoding/json"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

const keyPrefix = "/dipc/"

// EtcdRegistry implements Registry using etcd v3.
type EtcdRegistry struct {
	client *clientv3.Client
	log    *zap.Logger
}

// NewEtcdRegistry connects to the given etcd endpoints.
func NewEtcdRegistry(endpoints []string, log *zap.Logger) (*EtcdRegistry, error) {
	c, err := clientv3.New(clientv3.Config{
		Endpoints: endpoints,
	})
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &EtcdRegistry{client: c, log: log}, nil
}

func instanceKey(service, addr string) string {
	return keyPrefix + service + "/" + addr
}

func servicePrefix(service string) string {
	return keyPrefix + service + "/"
}

// Register adds an instance to etcd with a TTL lease and starts a
// background goroutine renewing that lease until the process exits or the
// lease is revoked.
//
// The lease is held in a local variable, not stored on the struct, so that multiple
// goroutines registering different services through one shared
// EtcdRegistry never race over it.
func (r *EtcdRegistry) Register(service string, instance Instance, ttlSeconds int64) error {
	ctx := context.TODO()

	lease, err := r.client.Grant(ctx, ttlSeconds)
	if err != nil {
		return err
	}

	val, err := json.Marshal(instance)
	if err != nil {
		return err
	}

	key := instanceKey(service, instance.Addr)
	if _, err := r.client.Put(ctx, key, string(val), clientv3.WithLease(lease.ID)); err != nil {
		return err
	}

	ch, err := r.client.KeepAlive(ctx, lease.ID)
	if err != nil {
		return err
	}

	go func() {
		for range ch {
		}
		r.log.Debug("lease keepalive channel closed", zap.String("key", key))
	}()

	r.log.Info("registered instance", zap.String("service", service), zap.String("addr", instance.Addr))
	return nil
}

// Deregister removes an instance, typically called during graceful
// shutdown before the listener is closed.
func (r *EtcdRegistry) Deregister(service, addr string) error {
	ctx := context.TODO()
	_, err := r.client.Delete(ctx, instanceKey(service, addr))
	if err != nil {
		return err
	}
	r.log.Info("deregistered instance", zap.String("service", service), zap.String("addr", addr))
	return nil
}

// Watch monitors a service's key prefix and emits the full updated
// instance list whenever anything under it changes.
func (r *EtcdRegistry) Watch(service string) <-chan []Instance {
	ctx := context.TODO()
	ch := make(chan []Instance, 1)
	prefix := servicePrefix(service)

	go func() {
		watchChan := r.client.Watch(ctx, prefix, clientv3.WithPrefix())
		for range watchChan {
			instances, err := r.Discover(service)
			if err != nil {
				r.log.Warn("watch re-discover failed", zap.String("service", service), zap.Error(err))
				continue
			}
			ch <- instances
		}
	}()

	return ch
}

// Discover returns all instances currently registered for service.
func (r *EtcdRegistry) Discover(service string) ([]Instance, error) {
	ctx := context.TODO()
	resp, err := r.client.Get(ctx, servicePrefix(service), clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}

	instances := make([]Instance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var instance Instance
		if err := json.Unmarshal(kv.Value, &instance); err != nil {
			r.log.Warn("skipping malformed instance record", zap.ByteString("key", kv.Key))
			continue
		}
		instances = append(instances, instance)
	}
	return instances, nil
}
