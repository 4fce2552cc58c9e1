package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"redisd/internal/server"
)

func main() {
	port := flag.Int("port", 6379, "port to listen on")
	dir := flag.String("dir", "/tmp/redis-files", "directory containing the RDB snapshot")
	dbFilename := flag.String("dbfilename", "dump.rdb", "RDB snapshot filename")
	replicaOf := flag.String("replicaof", "", `"<host> <port>" to start as a replica of that primary`)
	flag.Parse()

	cfg := server.DefaultConfig()
	cfg.Port = *port
	cfg.Dir = *dir
	cfg.DBFilename = *dbFilename

	if *replicaOf != "" {
		parts := strings.Fields(*replicaOf)
		if len(parts) != 2 {
			log.Fatalf("invalid --replicaof value %q: expected \"<host> <port>\"", *replicaOf)
		}
		cfg.ReplicaOfHost, cfg.ReplicaOfPort = parts[0], parts[1]
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("failed to start server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("shutting down server...")
		cancel()
		srv.Shutdown()
	}()

	log.Printf("starting redisd on port %d", cfg.Port)
	if err := srv.Start(ctx); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
