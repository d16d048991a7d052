package p2p

import (
	"context"
	"fmt"
	"net"
	"sync"
)

// Server accepts inbound connections and serves each as a Peer with
// a shared Handlers set. It does not track peer identity, reputation,
// or topology beyond the open connections themselves.
type Server struct {
	handlers Handlers

	mu       sync.Mutex
	peers    map[*Peer]struct{}
	listener net.Listener
}

// NewServer constructs a Server that will dispatch inbound frames to
// handlers.
func NewServer(handlers Handlers) *Server {
	return &Server{
		handlers: handlers,
		peers:    make(map[*Peer]struct{}),
	}
}

// Listen binds addr and starts accepting connections in the
// background. Call Close to stop.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	go s.acceptLoop(ln)
	return nil
}

// Addr returns the listener's bound address. Only valid after Listen
// has returned successfully.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener.Addr()
}

func (s *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		peer := NewPeer(conn, s.handlers)
		s.track(peer)
		go func() {
			defer s.untrack(peer)
			_ = peer.Serve(context.Background())
		}()
	}
}

// Track registers an already-connected Peer (e.g. one created via
// Dial) so it receives future Broadcasts and appears in Peers. The
// caller remains responsible for running Serve and for calling
// Untrack (or letting Serve's caller do so) once the connection ends.
func (s *Server) Track(p *Peer) { s.track(p) }

// Untrack removes a peer previously registered with Track.
func (s *Server) Untrack(p *Peer) { s.untrack(p) }

func (s *Server) track(p *Peer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peers[p] = struct{}{}
}

func (s *Server) untrack(p *Peer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.peers, p)
}

// Broadcast sends f to every currently connected peer, skipping any
// that error rather than aborting the whole broadcast.
func (s *Server) Broadcast(f Frame) {
	s.mu.Lock()
	peers := make([]*Peer, 0, len(s.peers))
	for p := range s.peers {
		peers = append(peers, p)
	}
	s.mu.Unlock()

	for _, p := range peers {
		_ = p.writeFrame(f)
	}
}

// Peers returns the currently connected peers.
func (s *Server) Peers() []*Peer {
	s.mu.Lock()
	defer s.mu.Unlock()
	peers := make([]*Peer, 0, len(s.peers))
	for p := range s.peers {
		peers = append(peers, p)
	}
	return peers
}

// Close stops accepting new connections and closes all tracked
// peers.
func (s *Server) Close() error {
	s.mu.Lock()
	ln := s.listener
	peers := make([]*Peer, 0, len(s.peers))
	for p := range s.peers {
		peers = append(peers, p)
	}
	s.mu.Unlock()

	var err error
	if ln != nil {
		err = ln.Close()
	}
	for _, p := range peers {
		_ = p.Close()
	}
	return err
}
