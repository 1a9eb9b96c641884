package openrgb

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/scheerer/nightwolf-rgb/lights"
)

// fakeServer answers SDK requests over an in-memory pipe.
type fakeServer struct {
	protocol    uint32 // 0 never answers the version probe
	controllers []*Controller

	mu         sync.Mutex
	announce   bool // send DEVICE_LIST_UPDATED before the next count reply
	conn       net.Conn
	clientName string
	received   []packet
	leds       map[uint32][]lights.Color
}

func newFakeServer(protocol uint32, controllers ...*Controller) *fakeServer {
	return &fakeServer{
		protocol:    protocol,
		controllers: controllers,
		leds:        make(map[uint32][]lights.Color),
	}
}

func (s *fakeServer) dial(ctx context.Context) (*Client, error) {
	clientConn, serverConn := net.Pipe()

	s.mu.Lock()
	s.conn = serverConn
	s.mu.Unlock()
	go s.serve(serverConn)

	c := newClient(clientConn, time.Second)
	if err := c.handshake(ctx, "test client"); err != nil {
		clientConn.Close()
		return nil, err
	}
	return c, nil
}

func (s *fakeServer) hangUp() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
	}
}

func (s *fakeServer) serve(conn net.Conn) {
	for {
		p, err := readPacket(conn)
		if err != nil {
			return
		}

		s.mu.Lock()
		s.received = append(s.received, p)
		s.mu.Unlock()

		switch p.id {
		case packetRequestProtocolVersion:
			if s.protocol > 0 {
				_ = writePacket(conn, packet{id: p.id, payload: u32Payload(s.protocol)})
			}
		case packetSetClientName:
			s.mu.Lock()
			s.clientName = string(p.payload[:len(p.payload)-1])
			s.mu.Unlock()
		case packetRequestControllerCount:
			s.mu.Lock()
			announce := s.announce
			s.announce = false
			s.mu.Unlock()
			if announce {
				_ = writePacket(conn, packet{id: packetDeviceListUpdated})
			}
			_ = writePacket(conn, packet{id: p.id, payload: u32Payload(uint32(len(s.controllers)))})
		case packetRequestControllerData:
			r := &reader{buf: p.payload}
			version := r.u32()
			if r.err != nil {
				version = 0
			}
			payload := encodeController(s.controllers[p.deviceID], version)
			_ = writePacket(conn, packet{deviceID: p.deviceID, id: p.id, payload: payload})
		case packetUpdateLEDs:
			colors, err := decodeUpdateLEDs(p.payload)
			if err == nil {
				s.mu.Lock()
				s.leds[p.deviceID] = colors
				s.mu.Unlock()
			}
		}
	}
}

func (s *fakeServer) packets(id packetID) []packet {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []packet
	for _, p := range s.received {
		if p.id == id {
			out = append(out, p)
		}
	}
	return out
}

func (s *fakeServer) ledsOf(deviceID uint32) []lights.Color {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.leds[deviceID]
}

func encodeController(c *Controller, version uint32) []byte {
	var body writer
	body.i32(c.Type)
	body.str(c.Name)
	if version >= 1 {
		body.str(c.Vendor)
	}
	body.str(c.Description)
	body.str(c.Version)
	body.str(c.Serial)
	body.str(c.Location)

	body.u16(uint16(len(c.Modes)))
	body.i32(c.ActiveMode)
	for _, m := range c.Modes {
		body.mode(m, version)
	}

	body.u16(uint16(len(c.Zones)))
	for _, z := range c.Zones {
		body.str(z.Name)
		body.i32(z.Type)
		body.u32(z.LEDsMin)
		body.u32(z.LEDsMax)
		body.u32(z.LEDsCount)
		body.u16(0)
	}

	body.u16(uint16(len(c.LEDs)))
	for _, led := range c.LEDs {
		body.str(led.Name)
		body.u32(led.Value)
	}
	body.colors(c.Colors)

	var w writer
	w.u32(uint32(4 + body.Len()))
	w.Write(body.Bytes())
	return w.Bytes()
}

func testController(name string, leds int) *Controller {
	c := &Controller{
		Type:        1,
		Name:        name,
		Vendor:      "ACME",
		Description: name + " controller",
		Version:     "1.0",
		Serial:      "SN-" + name,
		Location:    "HID: /dev/hidraw0",
		Modes: []Mode{
			{Name: "Direct", Value: 0, Flags: 1 << 5},
			{Name: "Static", Value: 1, Flags: 1 << 3, ColorsMin: 1, ColorsMax: 1, Colors: []lights.Color{{Red: 9}}},
		},
		Zones: []Zone{{Name: "Main", Type: 1, LEDsMin: uint32(leds), LEDsMax: uint32(leds), LEDsCount: uint32(leds)}},
	}
	for i := 0; i < leds; i++ {
		c.LEDs = append(c.LEDs, LED{Name: "LED", Value: uint32(i)})
		c.Colors = append(c.Colors, lights.Color{Red: 200, Green: 100, Blue: 50})
	}
	return c
}

func connectedGateway(t *testing.T, srv *fakeServer) *Gateway {
	t.Helper()
	g := New(Config{Host: "fake", ClientName: "test client"})
	g.dial = srv.dial
	if err := g.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { g.Close() })
	return g
}
