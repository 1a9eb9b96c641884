package openrgb

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/scheerer/nightwolf-rgb/lights"
)

var ErrShortPayload = errors.New("openrgb: payload too short")

type Controller struct {
	Type        int32
	Name        string
	Vendor      string
	Description string
	Version     string
	Serial      string
	Location    string
	ActiveMode  int32
	Modes       []Mode
	Zones       []Zone
	LEDs        []LED
	Colors      []lights.Color

	// base holds the colors brightness is scaled from: the last full-strength
	// frame, or Colors as reported by the server when nil.
	base []lights.Color
}

func (c *Controller) baseColors() []lights.Color {
	if c.base != nil {
		return c.base
	}
	return c.Colors
}

type Mode struct {
	Name          string
	Value         int32
	Flags         uint32
	SpeedMin      uint32
	SpeedMax      uint32
	BrightnessMin uint32
	BrightnessMax uint32
	ColorsMin     uint32
	ColorsMax     uint32
	Speed         uint32
	Brightness    uint32
	Direction     uint32
	ColorMode     uint32
	Colors        []lights.Color
}

type Zone struct {
	Name      string
	Type      int32
	LEDsMin   uint32
	LEDsMax   uint32
	LEDsCount uint32
}

type LED struct {
	Name  string
	Value uint32
}

// Device converts the controller at index id into the gateway snapshot.
func (c *Controller) Device(id int) lights.Device {
	modes := make([]lights.Mode, len(c.Modes))
	for i, m := range c.Modes {
		modes[i] = lights.Mode{ID: i, Name: m.Name, Value: m.Value, Flags: m.Flags}
	}
	return lights.Device{
		ID:          id,
		Name:        c.Name,
		Type:        c.Type,
		Vendor:      c.Vendor,
		Description: c.Description,
		Location:    c.Location,
		Serial:      c.Serial,
		LEDCount:    len(c.LEDs),
		ActiveMode:  int(c.ActiveMode),
		Modes:       modes,
		Colors:      append([]lights.Color(nil), c.Colors...),
	}
}

// reader walks a little endian payload, remembering the first short read.
type reader struct {
	buf []byte
	err error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.buf) < n {
		r.err = ErrShortPayload
		return nil
	}
	b := r.buf[:n]
	r.buf = r.buf[n:]
	return b
}

func (r *reader) u16() uint16 {
	if b := r.take(2); b != nil {
		return binary.LittleEndian.Uint16(b)
	}
	return 0
}

func (r *reader) u32() uint32 {
	if b := r.take(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

func (r *reader) i32() int32 {
	return int32(r.u32())
}

// str reads a length prefixed, NUL terminated string.
func (r *reader) str() string {
	b := r.take(int(r.u16()))
	return string(bytes.TrimRight(b, "\x00"))
}

func (r *reader) colors() []lights.Color {
	n := int(r.u16())
	colors := make([]lights.Color, 0, n)
	for i := 0; i < n && r.err == nil; i++ {
		colors = append(colors, unpackColor(r.u32()))
	}
	return colors
}

func parseController(payload []byte, version uint32) (*Controller, error) {
	r := &reader{buf: payload}
	c := &Controller{}

	r.u32() // data size
	c.Type = r.i32()
	c.Name = r.str()
	if version >= 1 {
		c.Vendor = r.str()
	}
	c.Description = r.str()
	c.Version = r.str()
	c.Serial = r.str()
	c.Location = r.str()

	numModes := int(r.u16())
	c.ActiveMode = r.i32()
	for i := 0; i < numModes && r.err == nil; i++ {
		c.Modes = append(c.Modes, parseMode(r, version))
	}

	numZones := int(r.u16())
	for i := 0; i < numZones && r.err == nil; i++ {
		z := Zone{
			Name:      r.str(),
			Type:      r.i32(),
			LEDsMin:   r.u32(),
			LEDsMax:   r.u32(),
			LEDsCount: r.u32(),
		}
		r.take(int(r.u16())) // matrix map
		c.Zones = append(c.Zones, z)
	}

	numLEDs := int(r.u16())
	for i := 0; i < numLEDs && r.err == nil; i++ {
		c.LEDs = append(c.LEDs, LED{Name: r.str(), Value: r.u32()})
	}

	c.Colors = r.colors()

	if r.err != nil {
		return nil, r.err
	}
	return c, nil
}

func parseMode(r *reader, version uint32) Mode {
	m := Mode{
		Name:     r.str(),
		Value:    r.i32(),
		Flags:    r.u32(),
		SpeedMin: r.u32(),
		SpeedMax: r.u32(),
	}
	if version >= 3 {
		m.BrightnessMin = r.u32()
		m.BrightnessMax = r.u32()
	}
	m.ColorsMin = r.u32()
	m.ColorsMax = r.u32()
	m.Speed = r.u32()
	if version >= 3 {
		m.Brightness = r.u32()
	}
	m.Direction = r.u32()
	m.ColorMode = r.u32()
	m.Colors = r.colors()
	return m
}

type writer struct {
	bytes.Buffer
}

func (w *writer) u16(v uint16) {
	_ = binary.Write(w, binary.LittleEndian, v)
}

func (w *writer) u32(v uint32) {
	_ = binary.Write(w, binary.LittleEndian, v)
}

func (w *writer) i32(v int32) {
	_ = binary.Write(w, binary.LittleEndian, v)
}

func (w *writer) str(s string) {
	w.u16(uint16(len(s) + 1))
	w.WriteString(s)
	w.WriteByte(0)
}

func (w *writer) colors(colors []lights.Color) {
	w.u16(uint16(len(colors)))
	for _, c := range colors {
		w.u32(packColor(c))
	}
}

func (w *writer) mode(m Mode, version uint32) {
	w.str(m.Name)
	w.i32(m.Value)
	w.u32(m.Flags)
	w.u32(m.SpeedMin)
	w.u32(m.SpeedMax)
	if version >= 3 {
		w.u32(m.BrightnessMin)
		w.u32(m.BrightnessMax)
	}
	w.u32(m.ColorsMin)
	w.u32(m.ColorsMax)
	w.u32(m.Speed)
	if version >= 3 {
		w.u32(m.Brightness)
	}
	w.u32(m.Direction)
	w.u32(m.ColorMode)
	w.colors(m.Colors)
}

// encodeUpdateMode builds an UPDATEMODE payload: size, mode index, mode.
func encodeUpdateMode(index int, m Mode, version uint32) []byte {
	var body writer
	body.i32(int32(index))
	body.mode(m, version)

	var w writer
	w.u32(uint32(4 + body.Len()))
	w.Write(body.Bytes())
	return w.Bytes()
}

func u32Payload(v uint32) []byte {
	var w writer
	w.u32(v)
	return w.Bytes()
}
