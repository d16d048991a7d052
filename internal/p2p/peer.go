package p2p

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/pebblechain/pebblechain/pkg/block"
	"github.com/pebblechain/pebblechain/pkg/codec"
	"github.com/pebblechain/pebblechain/pkg/tx"
	"github.com/pebblechain/pebblechain/pkg/types"
)

// Handlers are the node-side callbacks a Peer dispatches frames to.
// They run on the connection's read loop: no further frame from this
// peer is read until a handler returns.
type Handlers struct {
	// OnBlock is called with a decoded block received over the wire.
	OnBlock func(*block.Block)
	// OnTx is called with a decoded transaction received over the wire.
	OnTx func(*tx.Transaction)
	// OnRequest is called when a peer asks for a block by hash; the
	// returned block (if found) is sent back as a BlockFrame.
	OnRequest func(types.Hash) (*block.Block, bool)
}

// Peer wraps one net.Conn and runs its read loop, dispatching decoded
// frames to Handlers and serializing writes.
type Peer struct {
	conn     net.Conn
	handlers Handlers

	writeMu sync.Mutex

	closeOnce sync.Once
	closed    chan struct{}
}

// NewPeer wraps an already-established connection. Call Serve to run
// its read loop; it returns when the connection closes or ctx is
// canceled.
func NewPeer(conn net.Conn, handlers Handlers) *Peer {
	return &Peer{
		conn:     conn,
		handlers: handlers,
		closed:   make(chan struct{}),
	}
}

// Dial connects to addr and wraps the resulting connection.
func Dial(ctx context.Context, addr string, handlers Handlers) (*Peer, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return NewPeer(conn, handlers), nil
}

// Serve runs the peer's read loop until the connection errors, the
// peer is closed, or ctx is canceled. It always returns with the
// connection closed.
func (p *Peer) Serve(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			p.Close()
		case <-done:
		}
	}()

	for {
		frame, err := ReadFrame(p.conn)
		if err != nil {
			p.Close()
			return err
		}
		if err := p.dispatch(frame); err != nil {
			p.Close()
			return err
		}
	}
}

func (p *Peer) dispatch(f Frame) error {
	switch f.Tag {
	case TagBlock:
		b, err := block.Decode(f.Payload)
		if err != nil {
			return fmt.Errorf("%w: decoding block: %v", ErrPeerProtocol, err)
		}
		if p.handlers.OnBlock != nil {
			p.handlers.OnBlock(b)
		}
	case TagTx:
		t, err := tx.Decode(codec.NewReader(f.Payload))
		if err != nil {
			return fmt.Errorf("%w: decoding transaction: %v", ErrPeerProtocol, err)
		}
		if p.handlers.OnTx != nil {
			p.handlers.OnTx(t)
		}
	case TagRequest:
		if len(f.Payload) != types.HashSize {
			return fmt.Errorf("%w: request payload must be %d bytes", ErrPeerProtocol, types.HashSize)
		}
		var hash types.Hash
		copy(hash[:], f.Payload)
		if p.handlers.OnRequest == nil {
			return nil
		}
		b, ok := p.handlers.OnRequest(hash)
		if !ok {
			return nil
		}
		return p.SendBlock(b)
	default:
		return fmt.Errorf("%w: unhandled tag %q", ErrPeerProtocol, f.Tag)
	}
	return nil
}

// SendBlock writes b to the peer as a BlockFrame.
func (p *Peer) SendBlock(b *block.Block) error {
	return p.writeFrame(BlockFrame(b.Encode()))
}

// SendTx writes t to the peer as a TxFrame.
func (p *Peer) SendTx(t *tx.Transaction) error {
	return p.writeFrame(TxFrame(t.Encode()))
}

// RequestBlock asks the peer for the block with the given hash.
func (p *Peer) RequestBlock(hash types.Hash) error {
	return p.writeFrame(RequestFrame(hash))
}

func (p *Peer) writeFrame(f Frame) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return WriteFrame(p.conn, f)
}

// Close closes the underlying connection. Safe to call more than
// once and concurrently with Serve.
func (p *Peer) Close() error {
	p.closeOnce.Do(func() { close(p.closed) })
	return p.conn.Close()
}

// RemoteAddr reports the peer's network address.
func (p *Peer) RemoteAddr() net.Addr {
	return p.conn.RemoteAddr()
}
