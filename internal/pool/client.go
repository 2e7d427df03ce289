// Package pool implements the Stratum-style session with the mining pool:
// connection tracking, the line-delimited JSON exchange, share submission,
// and reconnect handling.
package pool

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/tari-project/graxil/internal/stats"
)

const dialTimeout = 10 * time.Second

// Client tracks pool connectivity and performance across reconnects
type Client struct {
	mu                 sync.Mutex
	poolAddress        string
	resolvedAddress    string
	connectionLatency  time.Duration
	connectedAt        time.Time
	connected          bool
	connectionAttempts uint32
	sessionID          string
}

// NewClient creates a pool client for the given host:port address
func NewClient(address string) *Client {
	return &Client{poolAddress: address}
}

// Dial resolves the pool address and opens a TCP connection with Nagle
// disabled. Connection latency and the resolved endpoint are recorded.
func (c *Client) Dial() (net.Conn, error) {
	c.mu.Lock()
	c.connectionAttempts++
	address := c.poolAddress
	c.mu.Unlock()

	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return nil, fmt.Errorf("invalid pool address %q: %w", address, err)
	}

	target := address
	if net.ParseIP(host) == nil {
		addrs, err := net.LookupHost(host)
		if err != nil {
			return nil, fmt.Errorf("resolving pool host %q: %w", host, err)
		}
		if len(addrs) == 0 {
			return nil, fmt.Errorf("no addresses found for pool host %q", host)
		}
		target = net.JoinHostPort(addrs[0], port)
	}

	start := time.Now()
	conn, err := net.DialTimeout("tcp", target, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("connecting to pool %s: %w", target, err)
	}
	latency := time.Since(start)

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(true)
	}

	c.mu.Lock()
	c.resolvedAddress = target
	c.connectionLatency = latency
	c.connectedAt = time.Now()
	c.connected = true
	c.mu.Unlock()

	return conn, nil
}

// MarkDisconnected records that the pool connection has been lost
func (c *Client) MarkDisconnected() {
	c.mu.Lock()
	c.connected = false
	c.connectedAt = time.Time{}
	c.mu.Unlock()
}

// Connected reports whether the session currently holds a live connection
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// UpdateLatency stores a fresh latency measurement
func (c *Client) UpdateLatency(latency time.Duration) {
	c.mu.Lock()
	c.connectionLatency = latency
	c.mu.Unlock()
}

// ResolvedAddress returns the endpoint of the last successful dial
func (c *Client) ResolvedAddress() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resolvedAddress
}

// SetSessionID stores the pool-assigned session id from the login response
func (c *Client) SetSessionID(id string) {
	c.mu.Lock()
	c.sessionID = id
	c.mu.Unlock()
}

// SessionID returns the pool-assigned session id, if any
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// PoolInfo implements stats.PoolInfoSource for the dashboard snapshot
func (c *Client) PoolInfo() stats.PoolInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	info := stats.PoolInfo{
		Address:            c.poolAddress,
		Connected:          c.connected,
		LatencyMS:          uint64(c.connectionLatency.Milliseconds()),
		ConnectionAttempts: c.connectionAttempts,
		SessionID:          c.sessionID,
	}
	if c.connected {
		info.UptimeSeconds = uint64(time.Since(c.connectedAt).Seconds())
	}
	return info
}
