package adminapi

import (
	"context"
	"net"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// AcceptLimiter throttles how fast the wire listener hands off newly
// accepted connections, the way ThrottledDriver throttles bytes moving
// through a backend: a single token-bucket limiter guarding one choke
// point, rather than per-client bookkeeping.
type AcceptLimiter struct {
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewAcceptLimiter builds a limiter allowing connectionsPerSecond accepts
// a second, with a burst of the same size.
func NewAcceptLimiter(connectionsPerSecond int, logger *zap.Logger) *AcceptLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AcceptLimiter{
		limiter: rate.NewLimiter(rate.Limit(connectionsPerSecond), connectionsPerSecond),
		logger:  logger,
	}
}

// Wait blocks until the next accept is allowed or ctx is cancelled.
func (a *AcceptLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// throttledConn wraps a net.Conn so every byte read off the wire also
// drains the accept-rate bucket, capping sustained throughput from a
// single abusive connection.
type throttledConn struct {
	net.Conn
	limiter *rate.Limiter
	ctx     context.Context
}

func (c *throttledConn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	if n > 0 {
		if waitErr := c.limiter.WaitN(c.ctx, n); waitErr != nil {
			return 0, waitErr
		}
	}
	return n, err
}

// Throttle wraps conn so reads from it respect the limiter.
func (a *AcceptLimiter) Throttle(ctx context.Context, conn net.Conn) net.Conn {
	return &throttledConn{Conn: conn, limiter: a.limiter, ctx: ctx}
}
