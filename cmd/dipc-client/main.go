// Command dipc-client discovers dipc-server instances (directly via -addr,
// or through etcd via -etcd/-service), picks one with a load balancer, and
// issues one RPC call against it.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"dipc/discovery"
	"dipc/loadbalance"
	"dipc/rpcclient"
)

func main() {
	addr := flag.String("addr", "", "dial this address directly, bypassing discovery")
	etcdEndpoints := flag.String("etcd", "", "comma-separated etcd endpoints")
	service := flag.String("service", "dipc-demo", "service name to discover")
	strategy := flag.String("strategy", "round-robin", "round-robin|weighted-random")
	version := flag.String("version", "", "pin discovery to instances advertising this version (canary routing); empty picks among all")
	method := flag.String("method", "ping", "method to call")
	params := flag.String("params", "null", "JSON params for the call")
	timeout := flag.Duration("timeout", 3*time.Second, "call timeout")
	flag.Parse()

	log, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init:", err)
		os.Exit(1)
	}
	defer log.Sync()

	target, err := resolveTarget(*addr, *etcdEndpoints, *service, *strategy, *version, log)
	if err != nil {
		log.Fatal("resolve target failed", zap.Error(err))
	}

	conn, err := net.Dial("tcp", target)
	if err != nil {
		log.Fatal("dial failed", zap.Error(err))
	}

	client := rpcclient.New(conn, log)
	if err := client.Start(); err != nil {
		log.Fatal("client start failed", zap.Error(err))
	}
	defer client.Stop()

	var rawParams json.RawMessage = json.RawMessage(*params)
	result, err := client.Call(context.Background(), *method, rawParams, *timeout)
	if err != nil {
		log.Fatal("call failed", zap.Error(err))
	}
	fmt.Println(string(result))
}

func resolveTarget(addr, etcdEndpoints, service, strategy, version string, log *zap.Logger) (string, error) {
	if addr != "" {
		return addr, nil
	}
	if etcdEndpoints == "" {
		return "", fmt.Errorf("either -addr or -etcd must be set")
	}

	reg, err := discovery.NewEtcdRegistry(strings.Split(etcdEndpoints, ","), log)
	if err != nil {
		return "", err
	}
	instances, err := reg.Discover(service)
	if err != nil {
		return "", err
	}
	instances = loadbalance.FilterByVersion(instances, version)
	if len(instances) == 0 {
		return "", fmt.Errorf("no instances registered for %q at version %q", service, version)
	}

	var balancer loadbalance.Balancer
	switch strategy {
	case "weighted-random":
		balancer = loadbalance.NewWeightedRandomBalancer(log)
	default:
		balancer = loadbalance.NewRoundRobinBalancer(log)
	}

	instance, err := balancer.Pick(instances)
	if err != nil {
		return "", err
	}
	return instance.Addr, nil
}
