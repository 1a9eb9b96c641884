package openrgb

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/scheerer/nightwolf-rgb/internal/logging"
	"github.com/scheerer/nightwolf-rgb/lights"
)

var logger = logging.New("openrgb")

const (
	DefaultTimeout = 2 * time.Second

	// servers older than protocol 1 never answer the version request
	versionProbeTimeout = time.Second
)

// Client is a single SDK connection. Requests are serialized so that a
// response is always read by the request that asked for it.
type Client struct {
	conn     net.Conn
	timeout  time.Duration
	protocol uint32

	mu            sync.Mutex
	deviceChanged bool
}

// Dial connects to an SDK server, negotiates the protocol version and
// announces name.
func Dial(ctx context.Context, addr string, name string, timeout time.Duration) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	c := newClient(conn, timeout)
	if err := c.handshake(ctx, name); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

func newClient(conn net.Conn, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{conn: conn, timeout: timeout}
}

func (c *Client) handshake(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.protocol = 0
	probeCtx, cancel := context.WithTimeout(ctx, versionProbeTimeout)
	resp, err := c.request(probeCtx, packet{
		id:      packetRequestProtocolVersion,
		payload: u32Payload(ProtocolVersion),
	})
	cancel()

	var netErr net.Error
	switch {
	case err == nil:
		r := &reader{buf: resp.payload}
		server := r.u32()
		if r.err != nil {
			return r.err
		}
		c.protocol = min(server, ProtocolVersion)
	case errors.As(err, &netErr) && netErr.Timeout():
		logger.Info("Server did not answer protocol version request - assuming version 0")
	default:
		return fmt.Errorf("negotiating protocol version: %w", err)
	}

	if err := c.send(ctx, packet{
		id:      packetSetClientName,
		payload: append([]byte(name), 0),
	}); err != nil {
		return fmt.Errorf("setting client name: %w", err)
	}
	return nil
}

func (c *Client) ProtocolVersion() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.protocol
}

// DeviceListChanged reports and clears whether the server announced a
// device list update since the last call.
func (c *Client) DeviceListChanged() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	changed := c.deviceChanged
	c.deviceChanged = false
	return changed
}

func (c *Client) ControllerCount(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	resp, err := c.request(ctx, packet{id: packetRequestControllerCount})
	if err != nil {
		return 0, err
	}
	r := &reader{buf: resp.payload}
	count := r.u32()
	return int(count), r.err
}

func (c *Client) ControllerData(ctx context.Context, index int) (*Controller, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	req := packet{deviceID: uint32(index), id: packetRequestControllerData}
	if c.protocol >= 1 {
		req.payload = u32Payload(c.protocol)
	}
	resp, err := c.request(ctx, req)
	if err != nil {
		return nil, err
	}
	return parseController(resp.payload, c.protocol)
}

func (c *Client) UpdateLEDs(ctx context.Context, index int, colors []lights.Color) error {
	payload, err := encodeUpdateLEDs(colors)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.send(ctx, packet{deviceID: uint32(index), id: packetUpdateLEDs, payload: payload})
}

func (c *Client) UpdateMode(ctx context.Context, index int, modeIndex int, mode Mode) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	payload := encodeUpdateMode(modeIndex, mode, c.protocol)
	return c.send(ctx, packet{deviceID: uint32(index), id: packetUpdateMode, payload: payload})
}

func (c *Client) SetCustomMode(ctx context.Context, index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.send(ctx, packet{deviceID: uint32(index), id: packetSetCustomMode})
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) deadline(ctx context.Context) time.Time {
	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		return d
	}
	return deadline
}

// send must be called with mu held.
func (c *Client) send(ctx context.Context, p packet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.conn.SetWriteDeadline(c.deadline(ctx)); err != nil {
		return err
	}
	return writePacket(c.conn, p)
}

// request sends p and waits for the reply with the same packet id, skipping
// unsolicited notifications. Must be called with mu held.
func (c *Client) request(ctx context.Context, p packet) (packet, error) {
	if err := c.send(ctx, p); err != nil {
		return packet{}, err
	}
	if err := c.conn.SetReadDeadline(c.deadline(ctx)); err != nil {
		return packet{}, err
	}
	defer c.conn.SetReadDeadline(time.Time{})

	for {
		resp, err := readPacket(c.conn)
		if err != nil {
			return packet{}, err
		}
		switch {
		case resp.id == packetDeviceListUpdated:
			c.deviceChanged = true
		case resp.id == p.id && resp.deviceID == p.deviceID:
			return resp, nil
		default:
			logger.With(zap.Uint32("packetId", uint32(resp.id))).Debug("Skipping unexpected packet")
		}
	}
}
