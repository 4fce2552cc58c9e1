package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"redisd/internal/session"
	"redisd/internal/store"
)

// Server owns the listener, the keyspace, and every connected
// session. It wires the typed command dispatcher, the replication
// hub, and the Lua engine together and drives the accept loop.
type Server struct {
	config *Config

	store      *store.Store
	dispatcher *Dispatcher
	repl       *ReplicationHub

	listener        net.Listener
	connections     sync.Map
	connIDCounter   atomic.Int64
	activeConnCount atomic.Int64
	wg              sync.WaitGroup

	shutdownChan chan struct{}
	mu           sync.RWMutex
	isShutdown   bool
}

// NewServer builds a Server from cfg, loading any on-disk snapshot and
// starting replica mode if cfg names a primary to replicate from.
func NewServer(cfg *Config) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	st := store.New()

	if err := loadSnapshot(st, cfg); err != nil {
		log.Printf("[RDB] warning: failed to load snapshot: %v", err)
		log.Println("[RDB] starting with empty database")
	}

	repl := newReplicationHub(st, strconv.Itoa(cfg.Port))
	dispatcher := newDispatcher(st, repl, cfg)

	s := &Server{
		config:       cfg,
		store:        st,
		dispatcher:   dispatcher,
		repl:         repl,
		shutdownChan: make(chan struct{}),
	}

	if cfg.IsReplica() {
		log.Printf("[REPLICATION] starting as replica of %s:%s", cfg.ReplicaOfHost, cfg.ReplicaOfPort)
		repl.startReplicaMode(cfg.ReplicaOfHost, cfg.ReplicaOfPort)
	}

	return s, nil
}

// Start binds the listener and runs the accept loop until ctx is
// cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start listener: %w", err)
	}

	s.listener = listener
	log.Printf("redisd listening on %s", addr)

	go s.acceptConnections(ctx)

	<-ctx.Done()
	return nil
}

func (s *Server) acceptConnections(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdownChan:
			return
		default:
			conn, err := s.listener.Accept()
			if err != nil {
				s.mu.RLock()
				shutdown := s.isShutdown
				s.mu.RUnlock()
				if shutdown {
					return
				}
				log.Printf("error accepting connection: %v", err)
				continue
			}

			s.wg.Add(1)
			go s.handleConnection(conn)
		}
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()

	connID := s.connIDCounter.Add(1)
	s.activeConnCount.Add(1)
	defer s.activeConnCount.Add(-1)

	s.connections.Store(connID, conn)
	defer s.connections.Delete(connID)
	defer conn.Close()

	start := time.Now()

	sess := session.New(conn, s.dispatcher, s.repl)
	sess.SetWriteHook(func(raw []byte) { s.repl.Propagate(raw) })
	sess.SetPubSubHooks(
		func(channel string, sub *session.Session) (int, error) {
			return s.store.Subscribe(channel, sub.ID(), sub)
		},
		func(channel, id string) int { return s.store.Unsubscribe(channel, id) },
	)

	sess.Run()

	duration := time.Since(start)
	if duration > 2*time.Second {
		log.Printf("connection [%d] from %s closed after %v", connID, conn.RemoteAddr(), duration.Round(time.Second))
	}
}

// Shutdown closes the listener and every open connection, waiting up
// to 5 seconds for in-flight sessions to drain.
func (s *Server) Shutdown() {
	s.mu.Lock()
	if s.isShutdown {
		s.mu.Unlock()
		return
	}
	s.isShutdown = true
	s.mu.Unlock()

	log.Println("initiating graceful shutdown...")
	close(s.shutdownChan)

	if s.listener != nil {
		s.listener.Close()
	}

	s.connections.Range(func(_, value interface{}) bool {
		if conn, ok := value.(net.Conn); ok {
			conn.Close()
		}
		return true
	})

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("all connections closed gracefully")
	case <-time.After(5 * time.Second):
		log.Println("shutdown timeout reached, forcing exit")
	}

	log.Println("redisd shutdown complete")
}
