package rpc

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/pebblechain/pebblechain/config"
	"github.com/pebblechain/pebblechain/internal/node"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, net.Conn) {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	require.NoError(t, config.EnsureDataDirs(cfg))

	n, err := node.New(cfg, nil, nil)
	require.NoError(t, err)
	require.NoError(t, n.Start(context.Background(), "127.0.0.1:0"))
	t.Cleanup(n.Stop)

	s := NewServer(n)
	require.NoError(t, s.Listen("127.0.0.1:0"))
	t.Cleanup(func() { s.Close() })

	conn, err := net.Dial("tcp", s.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return s, conn
}

func sendLine(t *testing.T, conn net.Conn, line string) string {
	t.Helper()
	_, err := conn.Write([]byte(line + "\n"))
	require.NoError(t, err)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	reply, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	return strings.TrimRight(reply, "\n")
}

func TestOperator_NewAddressAndBalance(t *testing.T) {
	_, conn := newTestServer(t)

	reply := sendLine(t, conn, "new_address")
	require.True(t, strings.HasPrefix(reply, "OK "))
	fields := strings.Fields(reply)
	require.Len(t, fields, 26, "OK + hex pubkey + 24-word mnemonic (256 bits of entropy)")
	addr := fields[1]

	reply = sendLine(t, conn, "balance "+addr)
	require.Equal(t, "OK 0", reply)
}

func TestOperator_UnknownCommand(t *testing.T) {
	_, conn := newTestServer(t)
	reply := sendLine(t, conn, "frobnicate")
	require.Contains(t, reply, "ERR unknown command")
}

func TestOperator_SendUsageError(t *testing.T) {
	_, conn := newTestServer(t)
	reply := sendLine(t, conn, "send onlyonearg")
	require.Contains(t, reply, "ERR usage: send")
}

func TestOperator_StartStopMiningLifecycle(t *testing.T) {
	_, conn := newTestServer(t)

	addrReply := sendLine(t, conn, "new_address")
	addr := strings.Fields(addrReply)[1]

	reply := sendLine(t, conn, "start_mining "+addr)
	require.Equal(t, "OK", reply)

	reply = sendLine(t, conn, "start_mining "+addr)
	require.Contains(t, reply, "ERR")
	require.Contains(t, reply, "already running")

	reply = sendLine(t, conn, "stop_mining")
	require.Equal(t, "OK", reply)

	reply = sendLine(t, conn, "stop_mining")
	require.Contains(t, reply, "ERR")
	require.Contains(t, reply, "not running")
}

func TestOperator_HashrateWhenIdle(t *testing.T) {
	_, conn := newTestServer(t)
	reply := sendLine(t, conn, "hashrate")
	require.Equal(t, "OK 0.00", reply)
}

func TestOperator_TipSummaryReturnsGenesis(t *testing.T) {
	_, conn := newTestServer(t)
	reply := sendLine(t, conn, "tip_summary 5")
	require.True(t, strings.HasPrefix(reply, "OK "))
	require.Contains(t, reply, "0:")
}

func TestOperator_BalanceInvalidAddress(t *testing.T) {
	_, conn := newTestServer(t)
	reply := sendLine(t, conn, "balance not-hex")
	require.Contains(t, reply, "ERR invalid address")
}
