package adminapi

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcceptLimiterWait(t *testing.T) {
	l := NewAcceptLimiter(1000, nil)
	require.NoError(t, l.Wait(context.Background()))
}

func TestThrottledConnReadsThroughLimiter(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	l := NewAcceptLimiter(1<<20, nil)
	throttled := l.Throttle(context.Background(), server)

	go func() {
		_, _ = client.Write([]byte("hello"))
	}()

	buf := make([]byte, 5)
	n, err := throttled.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))
}
