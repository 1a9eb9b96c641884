// Package openrgb implements the subset of the OpenRGB SDK network protocol
// needed to enumerate controllers, switch modes and write LED colors.
package openrgb

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/lunixbochs/struc"

	"github.com/scheerer/nightwolf-rgb/lights"
)

const (
	DefaultPort = 6742

	// ProtocolVersion is the highest SDK protocol version this client speaks.
	ProtocolVersion = 3

	headerSize = 16
)

type packetID uint32

const (
	packetRequestControllerCount packetID = 0
	packetRequestControllerData  packetID = 1
	packetRequestProtocolVersion packetID = 40
	packetSetClientName          packetID = 50
	packetDeviceListUpdated      packetID = 100
	packetUpdateLEDs             packetID = 1050
	packetSetCustomMode          packetID = 1100
	packetUpdateMode             packetID = 1101
)

var (
	magic = [4]byte{'O', 'R', 'G', 'B'}

	ErrBadMagic = errors.New("openrgb: bad packet magic")
)

type header struct {
	Magic    [4]byte `struc:"little"`
	DeviceID uint32  `struc:"little"`
	PacketID uint32  `struc:"little"`
	Size     uint32  `struc:"little"`
}

type packet struct {
	deviceID uint32
	id       packetID
	payload  []byte
}

// updateLEDsPayload colors are packed R, G, B, pad.
type updateLEDsPayload struct {
	DataSize  uint32   `struc:"little"`
	NumColors uint16   `struc:"little,sizeof=Colors"`
	Colors    []uint32 `struc:"little"`
}

func writePacket(w io.Writer, p packet) error {
	var buf bytes.Buffer
	h := header{
		Magic:    magic,
		DeviceID: p.deviceID,
		PacketID: uint32(p.id),
		Size:     uint32(len(p.payload)),
	}
	if err := struc.Pack(&buf, &h); err != nil {
		return err
	}
	buf.Write(p.payload)
	_, err := w.Write(buf.Bytes())
	return err
}

func readPacket(r io.Reader) (packet, error) {
	raw := make([]byte, headerSize)
	if _, err := io.ReadFull(r, raw); err != nil {
		return packet{}, err
	}
	var h header
	if err := struc.Unpack(bytes.NewReader(raw), &h); err != nil {
		return packet{}, err
	}
	if h.Magic != magic {
		return packet{}, fmt.Errorf("%w: %q", ErrBadMagic, h.Magic[:])
	}

	payload := make([]byte, h.Size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return packet{}, err
	}
	return packet{deviceID: h.DeviceID, id: packetID(h.PacketID), payload: payload}, nil
}

func packColor(c lights.Color) uint32 {
	return uint32(c.Red) | uint32(c.Green)<<8 | uint32(c.Blue)<<16
}

func unpackColor(v uint32) lights.Color {
	return lights.Color{Red: uint8(v), Green: uint8(v >> 8), Blue: uint8(v >> 16)}
}

func encodeUpdateLEDs(colors []lights.Color) ([]byte, error) {
	p := updateLEDsPayload{
		DataSize: uint32(4 + 2 + 4*len(colors)),
		Colors:   make([]uint32, len(colors)),
	}
	for i, c := range colors {
		p.Colors[i] = packColor(c)
	}

	var buf bytes.Buffer
	if err := struc.Pack(&buf, &p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeUpdateLEDs(payload []byte) ([]lights.Color, error) {
	var p updateLEDsPayload
	if err := struc.Unpack(bytes.NewReader(payload), &p); err != nil {
		return nil, err
	}
	colors := make([]lights.Color, len(p.Colors))
	for i, v := range p.Colors {
		colors[i] = unpackColor(v)
	}
	return colors, nil
}
