package camera

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"go.bug.st/serial"
)

// Framing constants for serial thermal modules. Each frame on the wire is:
// two sync bytes, a little-endian uint16 payload length, the payload, and a
// one-byte additive checksum over the payload.
const (
	frameSyncByte = 0x5A

	// maxFramePayload bounds the length field so a desynchronised read
	// cannot make us buffer garbage indefinitely.
	maxFramePayload = 256 * 192 * 2
)

// Streaming control commands understood by the modules.
var (
	startStreamCmd = []byte{0xA5, 0x35, 0x02, 0xDC}
	stopStreamCmd  = []byte{0xA5, 0x35, 0x01, 0xDB}
)

// PortOptions configures the serial transport.
type PortOptions struct {
	BaudRate int
	DataBits int
	Parity   serial.Parity
	StopBits serial.StopBits

	// FrameRate is the module's nominal output rate, reported through
	// FrameRate() since the wire protocol carries no rate field.
	FrameRate float64
}

// DefaultPortOptions returns the mode used by GY-MCU90640-class modules.
func DefaultPortOptions() PortOptions {
	return PortOptions{
		BaudRate:  115200,
		DataBits:  8,
		Parity:    serial.NoParity,
		StopBits:  serial.OneStopBit,
		FrameRate: 8,
	}
}

// SerialCamera is a camera handle backed by a serial-attached thermal
// module. It implements thermal.Camera; after the capturer starts, the
// worker goroutine is the only caller.
type SerialCamera struct {
	port      io.ReadWriteCloser
	br        *bufio.Reader
	frameRate float64
}

// OpenSerialCamera opens the serial device at the given path.
func OpenSerialCamera(path string, opts PortOptions) (*SerialCamera, error) {
	mode := &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: opts.DataBits,
		Parity:   opts.Parity,
		StopBits: opts.StopBits,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", path, err)
	}
	return NewSerialCamera(port, opts), nil
}

// NewSerialCamera wraps an already-open port. Exposed so tests can supply an
// in-memory port instead of real hardware.
func NewSerialCamera(port io.ReadWriteCloser, opts PortOptions) *SerialCamera {
	return &SerialCamera{
		port:      port,
		br:        bufio.NewReaderSize(port, 4096),
		frameRate: opts.FrameRate,
	}
}

// OpenStream puts the module into continuous output mode.
func (c *SerialCamera) OpenStream() error {
	if _, err := c.port.Write(startStreamCmd); err != nil {
		return fmt.Errorf("failed to send start command: %w", err)
	}
	return nil
}

// ReadFrame blocks until one complete, checksum-valid frame payload arrives.
// Garbage between frames (or a corrupt frame) causes a resync on the next
// pair of sync bytes rather than an error.
func (c *SerialCamera) ReadFrame() ([]byte, error) {
	for {
		b, err := c.br.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("failed to read from serial port: %w", err)
		}
		if b != frameSyncByte {
			continue
		}
		b, err = c.br.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("failed to read from serial port: %w", err)
		}
		if b != frameSyncByte {
			continue
		}

		var lenBuf [2]byte
		if _, err := io.ReadFull(c.br, lenBuf[:]); err != nil {
			return nil, fmt.Errorf("failed to read frame length: %w", err)
		}
		n := int(binary.LittleEndian.Uint16(lenBuf[:]))
		if n == 0 || n > maxFramePayload {
			// Implausible length: we synced on payload bytes. Try again.
			continue
		}

		payload := make([]byte, n)
		if _, err := io.ReadFull(c.br, payload); err != nil {
			return nil, fmt.Errorf("failed to read frame payload: %w", err)
		}
		var sumBuf [1]byte
		if _, err := io.ReadFull(c.br, sumBuf[:]); err != nil {
			return nil, fmt.Errorf("failed to read frame checksum: %w", err)
		}
		if checksum(payload) != sumBuf[0] {
			continue
		}
		return payload, nil
	}
}

// StopStream takes the module out of continuous output mode.
func (c *SerialCamera) StopStream() error {
	if _, err := c.port.Write(stopStreamCmd); err != nil {
		return fmt.Errorf("failed to send stop command: %w", err)
	}
	return nil
}

// FrameRate returns the module's nominal output rate.
func (c *SerialCamera) FrameRate() float64 { return c.frameRate }

// Close closes the serial port.
func (c *SerialCamera) Close() error { return c.port.Close() }

// checksum is the additive checksum over a frame payload.
func checksum(payload []byte) byte {
	var sum byte
	for _, b := range payload {
		sum += b
	}
	return sum
}

// EncodeWireFrame wraps a payload in the wire framing (sync bytes, length,
// payload, checksum). Used by the mock transport and tests.
func EncodeWireFrame(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+5)
	out = append(out, frameSyncByte, frameSyncByte)
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(payload)))
	out = append(out, lenBuf[:]...)
	out = append(out, payload...)
	out = append(out, checksum(payload))
	return out
}
