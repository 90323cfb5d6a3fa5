package broker

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/FairForge/tidelog/internal/protocol"
	"github.com/stretchr/testify/require"
)

func TestServer_ServeTCPRoundTrip(t *testing.T) {
	d := newTestDispatcher(t)
	srv := NewServer(d, nil, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		srv.ServeTCP(ctx, ln)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, protocol.WriteFrame(conn, []byte{byte(protocol.CmdPing)}))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	resp, err := protocol.ReadFrame(conn)
	require.NoError(t, err)
	require.Equal(t, []byte{protocol.StatusOK}, resp)
}

func TestServer_ServeUDPRoundTrip(t *testing.T) {
	d := newTestDispatcher(t)
	srv := NewServer(d, nil, nil)

	addr, err := net.ResolveUDPAddr("udp", "127.0.0.1:0")
	require.NoError(t, err)
	conn, err := net.ListenUDP("udp", addr)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		srv.ServeUDP(ctx, conn)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	client, err := net.Dial("udp", conn.LocalAddr().String())
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Write([]byte{byte(protocol.CmdPing)})
	require.NoError(t, err)

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 64)
	n, err := client.Read(buf)
	require.NoError(t, err)
	require.Equal(t, []byte{protocol.StatusOK}, buf[:n])
}
