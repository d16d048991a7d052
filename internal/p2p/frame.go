// Package p2p implements the wire transport named in §6 as an
// external collaborator: u32 big-endian length ‖ payload, where the
// payload begins with a 3-byte tag identifying a block, a
// transaction, or a request for a block by hash. There is no peer
// discovery, gossip, or reputation here — multi-peer gossip with peer
// discovery is explicitly out of scope; a node dials the peers it is
// told about and exchanges frames directly.
package p2p

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pebblechain/pebblechain/pkg/types"
)

// Tag identifies a frame's payload kind.
type Tag [3]byte

var (
	TagBlock   = Tag{'B', 'L', 'K'}
	TagTx      = Tag{'T', 'X', 'N'}
	TagRequest = Tag{'R', 'E', 'Q'}
)

// MaxFrameSize bounds a single frame's payload, guarding against a
// malformed length prefix causing an unbounded allocation.
const MaxFrameSize = 4 << 20 // 4 MiB

// ErrPeerProtocol is §7's PeerProtocol error kind: a malformed frame.
// The transport closes the connection on this error.
var ErrPeerProtocol = fmt.Errorf("malformed frame")

// Frame is one transport-level message: a tag plus its raw payload
// (a serialized block, a serialized transaction, or a 32-byte block
// hash being requested).
type Frame struct {
	Tag     Tag
	Payload []byte
}

// BlockFrame wraps an encoded block for sending.
func BlockFrame(encoded []byte) Frame { return Frame{Tag: TagBlock, Payload: encoded} }

// TxFrame wraps an encoded transaction for sending.
func TxFrame(encoded []byte) Frame { return Frame{Tag: TagTx, Payload: encoded} }

// RequestFrame asks a peer for the block with the given hash; the
// expected reply is a BlockFrame.
func RequestFrame(hash types.Hash) Frame {
	return Frame{Tag: TagRequest, Payload: hash.Bytes()}
}

// WriteFrame writes length ‖ tag ‖ payload to w.
func WriteFrame(w io.Writer, f Frame) error {
	body := make([]byte, len(f.Tag)+len(f.Payload))
	copy(body, f.Tag[:])
	copy(body[len(f.Tag):], f.Payload)

	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("write frame length: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("write frame body: %w", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed frame from r.
func ReadFrame(r io.Reader) (Frame, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return Frame{}, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n < 3 || n > MaxFrameSize {
		return Frame{}, fmt.Errorf("%w: frame length %d out of range", ErrPeerProtocol, n)
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return Frame{}, fmt.Errorf("read frame body: %w", err)
	}

	var tag Tag
	copy(tag[:], body[:3])
	switch tag {
	case TagBlock, TagTx, TagRequest:
	default:
		return Frame{}, fmt.Errorf("%w: unknown tag %q", ErrPeerProtocol, tag)
	}
	if tag == TagRequest && len(body)-3 != types.HashSize {
		return Frame{}, fmt.Errorf("%w: REQ payload must be %d bytes, got %d", ErrPeerProtocol, types.HashSize, len(body)-3)
	}

	return Frame{Tag: tag, Payload: body[3:]}, nil
}
