package p2p

import (
	"bytes"
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/pebblechain/pebblechain/pkg/block"
	"github.com/pebblechain/pebblechain/pkg/tx"
	"github.com/pebblechain/pebblechain/pkg/types"
	"github.com/stretchr/testify/require"
)

func TestFrame_BlockRoundTrip(t *testing.T) {
	b := block.Genesis()
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, BlockFrame(b.Encode())))

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	require.Equal(t, TagBlock, got.Tag)

	decoded, err := block.Decode(got.Payload)
	require.NoError(t, err)
	require.Equal(t, b.Hash(), decoded.Hash())
}

func TestFrame_RequestRoundTrip(t *testing.T) {
	hash := block.Genesis().Hash()
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, RequestFrame(hash)))

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	require.Equal(t, TagRequest, got.Tag)
	require.Equal(t, hash.Bytes(), got.Payload)
}

func TestReadFrame_RejectsUnknownTag(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, Frame{Tag: Tag{'X', 'X', 'X'}, Payload: []byte("hi")}))

	_, err := ReadFrame(&buf)
	require.ErrorIs(t, err, ErrPeerProtocol)
}

func TestReadFrame_RejectsOversizeLength(t *testing.T) {
	var buf bytes.Buffer
	// A length prefix far beyond MaxFrameSize with no body behind it.
	buf.Write([]byte{0x7f, 0xff, 0xff, 0xff})

	_, err := ReadFrame(&buf)
	require.ErrorIs(t, err, ErrPeerProtocol)
}

func TestReadFrame_RejectsMalformedRequestLength(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, Frame{Tag: TagRequest, Payload: []byte("short")}))

	_, err := ReadFrame(&buf)
	require.ErrorIs(t, err, ErrPeerProtocol)
}

func TestPeer_ServeDispatchesBlockAndTx(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	var mu sync.Mutex
	var gotBlock *block.Block
	var gotTx *tx.Transaction
	done := make(chan struct{}, 2)

	handlers := Handlers{
		OnBlock: func(b *block.Block) {
			mu.Lock()
			gotBlock = b
			mu.Unlock()
			done <- struct{}{}
		},
		OnTx: func(tr *tx.Transaction) {
			mu.Lock()
			gotTx = tr
			mu.Unlock()
			done <- struct{}{}
		},
	}

	server := NewPeer(serverConn, handlers)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go server.Serve(ctx)

	b := block.Genesis()
	require.NoError(t, WriteFrame(clientConn, BlockFrame(b.Encode())))

	sampleTx := &tx.Transaction{}
	require.NoError(t, WriteFrame(clientConn, TxFrame(sampleTx.Encode())))

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for dispatch")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	require.NotNil(t, gotBlock)
	require.Equal(t, b.Hash(), gotBlock.Hash())
	require.NotNil(t, gotTx)
}

func TestPeer_RequestInvokesHandlerAndRepliesWithBlock(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()

	genesis := block.Genesis()
	handlers := Handlers{
		OnRequest: func(h types.Hash) (*block.Block, bool) {
			if h == genesis.Hash() {
				return genesis, true
			}
			return nil, false
		},
	}

	server := NewPeer(serverConn, handlers)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go server.Serve(ctx)

	require.NoError(t, WriteFrame(clientConn, RequestFrame(genesis.Hash())))

	replyCh := make(chan Frame, 1)
	go func() {
		f, err := ReadFrame(clientConn)
		if err == nil {
			replyCh <- f
		}
	}()

	select {
	case reply := <-replyCh:
		require.Equal(t, TagBlock, reply.Tag)
		decoded, err := block.Decode(reply.Payload)
		require.NoError(t, err)
		require.Equal(t, genesis.Hash(), decoded.Hash())
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reply")
	}
}

func TestServer_ListenAndDialDeliversBlock(t *testing.T) {
	blockCh := make(chan *block.Block, 1)
	server := NewServer(Handlers{
		OnBlock: func(b *block.Block) { blockCh <- b },
	})
	require.NoError(t, server.Listen("127.0.0.1:0"))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	peer, err := Dial(ctx, server.Addr().String(), Handlers{})
	require.NoError(t, err)
	defer peer.Close()

	b := block.Genesis()
	require.NoError(t, peer.SendBlock(b))

	select {
	case got := <-blockCh:
		require.Equal(t, b.Hash(), got.Hash())
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server to receive block")
	}

	require.Len(t, server.Peers(), 1)
}
