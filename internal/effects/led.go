package effects

import (
	"context"
	"fmt"
	"time"

	"go.bug.st/serial"
)

// ledFrameHeader starts every frame written to the LED controller.
const ledFrameHeader = 0x7E

// LEDStep sets one LED channel to a value and holds it.
type LEDStep struct {
	// Channel is the controller output channel.
	Channel int `json:"channel"`

	// Value is the PWM duty 0-255.
	Value int `json:"value"`

	// HoldMs is how long to hold the value before the next step.
	HoldMs int `json:"hold_ms,omitempty"`
}

// LEDEffect animates an LED strip behind the wand rest through a serial
// controller. Each step is written as a 4-byte frame
// [header, channel, value, checksum].
type LEDEffect struct {
	port  string
	baud  int
	steps []LEDStep
}

// NewLEDEffect creates an LEDEffect for the serial port at the given baud
// rate. Steps are validated up front.
func NewLEDEffect(port string, baud int, steps []LEDStep) (*LEDEffect, error) {
	if port == "" {
		return nil, fmt.Errorf("led serial port is required")
	}
	if baud <= 0 {
		baud = 9600
	}
	for i, s := range steps {
		if s.Channel < 0 || s.Channel > 255 {
			return nil, fmt.Errorf("led step %d: channel %d out of range 0-255", i, s.Channel)
		}
		if s.Value < 0 || s.Value > 255 {
			return nil, fmt.Errorf("led step %d: value %d out of range 0-255", i, s.Value)
		}
	}

	return &LEDEffect{
		port:  port,
		baud:  baud,
		steps: steps,
	}, nil
}

// Name identifies the effect kind.
func (l *LEDEffect) Name() string {
	return "led"
}

// Run opens the port, plays the steps, and turns touched channels off on
// the way out.
func (l *LEDEffect) Run(ctx context.Context) error {
	mode := &serial.Mode{
		BaudRate: l.baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(l.port, mode)
	if err != nil {
		return fmt.Errorf("open led port %s: %w", l.port, err)
	}
	defer port.Close()

	touched := make(map[int]bool)
	for _, s := range l.steps {
		if err := ctx.Err(); err != nil {
			break
		}

		if err := writeLEDFrame(port, s.Channel, s.Value); err != nil {
			return err
		}
		touched[s.Channel] = true

		if s.HoldMs > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(time.Duration(s.HoldMs) * time.Millisecond):
			}
		}
	}

	// Leave the strip dark regardless of how the animation ended
	for ch := range touched {
		if err := writeLEDFrame(port, ch, 0); err != nil {
			return err
		}
	}

	return ctx.Err()
}

func writeLEDFrame(port serial.Port, channel, value int) error {
	frame := []byte{ledFrameHeader, byte(channel), byte(value), byte(channel) ^ byte(value)}
	if _, err := port.Write(frame); err != nil {
		return fmt.Errorf("write led frame: %w", err)
	}
	return nil
}
