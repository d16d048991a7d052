// Package rpc implements the operator interface (§6): a line-oriented
// command channel proxying the node's programmatic methods
// (send, new_address, balance, start_mining, stop_mining, hashrate,
// tip_summary) to whatever is connected to the listening socket —
// typically a human with netcat or a small script, not a structured
// RPC client.
package rpc

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"

	"github.com/pebblechain/pebblechain/internal/log"
	"github.com/pebblechain/pebblechain/internal/node"
	"github.com/pebblechain/pebblechain/pkg/types"
	"github.com/rs/zerolog"
)

// Server accepts operator connections and serves commands against a
// *node.Node, one line in, one line (or short block) out per command.
type Server struct {
	n      *node.Node
	logger zerolog.Logger

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
}

// NewServer constructs an operator server fronting n.
func NewServer(n *node.Node) *Server {
	return &Server{n: n, logger: log.WithComponent("rpc")}
}

// Listen binds addr and begins serving connections in the background.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.wg.Add(1)
	go s.acceptLoop(ln)
	return nil
}

// Addr returns the listener's bound address.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener.Addr()
}

func (s *Server) acceptLoop(ln net.Listener) {
	defer s.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(conn)
		}()
	}
}

// Close stops accepting connections and waits for every connection
// goroutine to return. Open connections are not closed: each goroutine
// returns only once its client disconnects, so Close blocks while any
// operator connection stays open.
func (s *Server) Close() error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	var err error
	if ln != nil {
		err = ln.Close()
	}
	s.wg.Wait()
	return err
}

func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		reply := s.handleLine(conn, line)
		if _, err := io.WriteString(conn, reply+"\n"); err != nil {
			return
		}
	}
}

// handleLine dispatches one command line and returns its reply,
// recovering a panicking handler into a stack-trace reply rather than
// taking down the connection (§7's "internal failures during command
// handling print a stack trace to the command socket" debug
// affordance).
func (s *Server) handleLine(conn net.Conn, line string) (reply string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Str("command", line).Msg("command handler panicked")
			reply = fmt.Sprintf("ERR internal error: %v\n%s", r, debug.Stack())
		}
	}()

	fields := strings.Fields(line)
	cmd := fields[0]
	args := fields[1:]

	switch cmd {
	case "send":
		return s.cmdSend(args)
	case "new_address":
		return s.cmdNewAddress(args)
	case "balance":
		return s.cmdBalance(args)
	case "start_mining":
		return s.cmdStartMining(args)
	case "stop_mining":
		return s.cmdStopMining(args)
	case "hashrate":
		return s.cmdHashrate(args)
	case "tip_summary":
		return s.cmdTipSummary(args)
	default:
		return fmt.Sprintf("ERR unknown command %q", cmd)
	}
}

func (s *Server) cmdSend(args []string) string {
	if len(args) != 2 {
		return "ERR usage: send <addr> <amount>"
	}
	dest, err := types.HexToPublicKey(args[0])
	if err != nil {
		return fmt.Sprintf("ERR invalid address: %v", err)
	}
	amount, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		return fmt.Sprintf("ERR invalid amount: %v", err)
	}
	txid, err := s.n.Send(dest, amount)
	if err != nil {
		return fmt.Sprintf("ERR %v", err)
	}
	return "OK " + txid.String()
}

func (s *Server) cmdNewAddress(args []string) string {
	if len(args) != 0 {
		return "ERR usage: new_address"
	}
	mnemonic, pub, err := s.n.NewAddress()
	if err != nil {
		return fmt.Sprintf("ERR %v", err)
	}
	return fmt.Sprintf("OK %s %s", pub.String(), mnemonic)
}

func (s *Server) cmdBalance(args []string) string {
	if len(args) > 1 {
		return "ERR usage: balance [addr]"
	}
	var addr *types.PublicKey
	if len(args) == 1 {
		pub, err := types.HexToPublicKey(args[0])
		if err != nil {
			return fmt.Sprintf("ERR invalid address: %v", err)
		}
		addr = &pub
	}
	bal, err := s.n.Balance(addr)
	if err != nil {
		return fmt.Sprintf("ERR %v", err)
	}
	return fmt.Sprintf("OK %d", bal)
}

func (s *Server) cmdStartMining(args []string) string {
	if len(args) != 1 {
		return "ERR usage: start_mining <addr>"
	}
	pub, err := types.HexToPublicKey(args[0])
	if err != nil {
		return fmt.Sprintf("ERR invalid address: %v", err)
	}
	if err := s.n.StartMining(pub); err != nil {
		return fmt.Sprintf("ERR %v", err)
	}
	return "OK"
}

func (s *Server) cmdStopMining(args []string) string {
	if len(args) != 0 {
		return "ERR usage: stop_mining"
	}
	if err := s.n.StopMining(); err != nil {
		return fmt.Sprintf("ERR %v", err)
	}
	return "OK"
}

func (s *Server) cmdHashrate(args []string) string {
	if len(args) != 0 {
		return "ERR usage: hashrate"
	}
	return fmt.Sprintf("OK %.2f", s.n.Hashrate())
}

func (s *Server) cmdTipSummary(args []string) string {
	if len(args) > 1 {
		return "ERR usage: tip_summary [limit]"
	}
	limit := 10
	if len(args) == 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			return "ERR invalid limit"
		}
		limit = n
	}
	entries := s.n.TipSummary(limit)
	var b strings.Builder
	b.WriteString("OK")
	for _, e := range entries {
		fmt.Fprintf(&b, " %d:%s:%d:%d", e.Height, e.Hash.String(), e.Timestamp, e.TxCount)
	}
	return b.String()
}
