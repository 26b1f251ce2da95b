// Command dipc-server hosts a handful of demo RPC methods, optionally
// registering itself into etcd so dipc-client instances can discover it.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"dipc/discovery"
	"dipc/middleware"
	"dipc/rpcserver"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:9000", "address to listen on")
	service := flag.String("service", "dipc-demo", "service name advertised to discovery")
	etcdEndpoints := flag.String("etcd", "", "comma-separated etcd endpoints; empty disables registration")
	ttl := flag.Int64("ttl", 10, "registration lease TTL in seconds")
	flag.Parse()

	log, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init:", err)
		os.Exit(1)
	}
	defer log.Sync()

	srv := rpcserver.New(log)
	srv.Use(middleware.LoggingMiddleware(log))
	srv.Use(middleware.RateLimitMiddleware(500, 100))
	srv.Use(middleware.TimeoutMiddleware(5 * time.Second))
	registerDemoHandlers(srv)

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		log.Fatal("listen failed", zap.Error(err))
	}
	defer ln.Close()
	log.Info("listening", zap.String("addr", ln.Addr().String()))

	if *etcdEndpoints != "" {
		reg, err := discovery.NewEtcdRegistry(strings.Split(*etcdEndpoints, ","), log)
		if err != nil {
			log.Fatal("etcd connect failed", zap.Error(err))
		}
		instance := discovery.Instance{Addr: ln.Addr().String(), Weight: 10, Version: "1.0"}
		if err := reg.Register(*service, instance, *ttl); err != nil {
			log.Fatal("register failed", zap.Error(err))
		}
		defer reg.Deregister(*service, instance.Addr)
	}

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				log.Warn("accept failed", zap.Error(err))
				return
			}
			go func() {
				if err := srv.Serve(conn); err != nil {
					log.Debug("connection closed", zap.Error(err))
				}
			}()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("shutting down")
}

func registerDemoHandlers(srv *rpcserver.Server) {
	srv.On("ping", func(ctx context.Context, params json.RawMessage) (any, error) {
		return "pong", nil
	})

	srv.On("echo", func(ctx context.Context, params json.RawMessage) (any, error) {
		var msg any
		if len(params) > 0 {
			if err := json.Unmarshal(params, &msg); err != nil {
				return nil, err
			}
		}
		return msg, nil
	})

	srv.On("add", func(ctx context.Context, params json.RawMessage) (any, error) {
		var args struct {
			A, B float64
		}
		if err := json.Unmarshal(params, &args); err != nil {
			return nil, err
		}
		return args.A + args.B, nil
	})
}
