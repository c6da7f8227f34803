// Command ember-server runs a standalone Ember server.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/emberdb/ember"
	"github.com/emberdb/ember/storage"
)

func main() {
	var (
		addr        = flag.String("addr", ":6379", "listen address")
		password    = flag.String("password", "", "require AUTH with this password")
		maxConns    = flag.Int("max-connections", 0, "maximum concurrent clients (0 = unlimited)")
		readTimeout = flag.Duration("read-timeout", 0, "per-read client deadline (0 = none)")
		shards      = flag.Int("shards", 0, "storage shard count, power of two (0 = default)")
		large       = flag.Bool("large-dataset", false, "tune expiry cleanup for large keyspaces")
		version     = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *version {
		fmt.Printf("ember-server %s\n", ember.Version)
		os.Exit(0)
	}

	opts := []ember.Option{
		ember.WithAddr(*addr),
		ember.WithLogger(ember.NewStdLogger()),
	}
	if *password != "" {
		opts = append(opts, ember.WithPassword(*password))
	}
	if *maxConns > 0 {
		opts = append(opts, ember.WithMaxConnections(*maxConns))
	}
	if *readTimeout > 0 {
		opts = append(opts, ember.WithReadTimeout(*readTimeout))
	}
	if *shards > 0 {
		opts = append(opts, ember.WithShardCount(*shards))
	}
	if *large {
		opts = append(opts, ember.WithCleanupConfig(storage.CleanupConfigLargeDataset))
	}

	srv, err := ember.New(opts...)
	if err != nil {
		log.Fatal("Failed to configure server:", err)
	}

	if err := srv.Start(); err != nil {
		log.Fatal("Failed to start server:", err)
	}
	log.Printf("ember-server %s listening on %s", ember.Version, srv.Addr())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	done := make(chan error, 1)
	go func() { done <- srv.Close() }()

	select {
	case err := <-done:
		if err != nil {
			log.Fatal("Shutdown error:", err)
		}
	case <-time.After(10 * time.Second):
		log.Fatal("Shutdown timed out")
	}
}
