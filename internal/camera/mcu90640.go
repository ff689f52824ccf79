package camera

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/banshee-data/thermal.view/internal/temperature"
	"github.com/banshee-data/thermal.view/internal/thermal"
)

// MCU90640 dimensions (MLX90640 sensor behind a serial MCU).
const (
	mcu90640Width  = 32
	mcu90640Height = 24
)

// MCU90640Adapter decodes frames from GY-MCU90640-class serial thermal
// modules: a row-major grid of little-endian int16 values in hundredths of a
// degree Celsius. Modules append an ambient-temperature trailer after the
// grid, which is ignored.
type MCU90640Adapter struct{}

func init() {
	RegisterAdapter(MCU90640Adapter{})
}

func (MCU90640Adapter) Name() string { return "mcu90640" }

func (MCU90640Adapter) Resolution() (width, height int) {
	return mcu90640Width, mcu90640Height
}

func (a MCU90640Adapter) DecodeFrame(raw []byte) (*thermal.Frame, error) {
	want := mcu90640Width * mcu90640Height * 2
	if len(raw) < want {
		return nil, fmt.Errorf("short mcu90640 frame: got %d bytes, want at least %d", len(raw), want)
	}

	frame := thermal.NewFrame(mcu90640Width, mcu90640Height)
	frame.CapturedAt = time.Now()
	for i := range frame.Pixels {
		centi := int16(binary.LittleEndian.Uint16(raw[i*2:]))
		frame.Pixels[i] = temperature.FromUnit(temperature.Celsius, float64(centi)/100.0)
	}
	return frame, nil
}
