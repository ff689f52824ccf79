package camera

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/banshee-data/thermal.view/internal/temperature"
	"github.com/banshee-data/thermal.view/internal/thermal"
)

// P2Pro dimensions.
const (
	p2proWidth  = 256
	p2proHeight = 192
)

// P2ProAdapter decodes the radiometric sub-frame of Infiray P2 Pro cameras:
// a row-major grid of little-endian uint16 values in 1/64ths of a Kelvin.
type P2ProAdapter struct{}

func init() {
	RegisterAdapter(P2ProAdapter{})
}

func (P2ProAdapter) Name() string { return "p2pro" }

func (P2ProAdapter) Resolution() (width, height int) {
	return p2proWidth, p2proHeight
}

func (a P2ProAdapter) DecodeFrame(raw []byte) (*thermal.Frame, error) {
	want := p2proWidth * p2proHeight * 2
	if len(raw) != want {
		return nil, fmt.Errorf("bad p2pro frame size: got %d bytes, want %d", len(raw), want)
	}

	frame := thermal.NewFrame(p2proWidth, p2proHeight)
	frame.CapturedAt = time.Now()
	for i := range frame.Pixels {
		v := binary.LittleEndian.Uint16(raw[i*2:])
		frame.Pixels[i] = temperature.FromKelvin(float64(v) / 64.0)
	}
	return frame, nil
}
