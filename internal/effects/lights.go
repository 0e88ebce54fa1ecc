package effects

import (
	"context"
	"fmt"
	"net"
	"time"
)

// LightCommand is one step of a milight bridge sequence.
type LightCommand struct {
	// Group is the bulb group 1-4, or 0 for all groups.
	Group int `json:"group"`

	// Command is one of "on", "off", "white", "brightness", "color",
	// "disco".
	Command string `json:"command"`

	// Payload carries the command argument where one applies:
	// brightness 0-100, color hue 0-255.
	Payload int `json:"payload,omitempty"`
}

// Per-group opcodes for the milight v3 UDP bridge protocol.
var (
	lightOnCodes    = [5]byte{0x42, 0x45, 0x47, 0x49, 0x4B}
	lightOffCodes   = [5]byte{0x41, 0x46, 0x48, 0x4A, 0x4C}
	lightWhiteCodes = [5]byte{0xC2, 0xC5, 0xC7, 0xC9, 0xCB}
)

// lightCommandPause is the settle time the bridge needs between datagrams.
const lightCommandPause = 100 * time.Millisecond

// LightEffect drives milight RGBW bulbs through their UDP bridge.
type LightEffect struct {
	addr     string
	commands []LightCommand
}

// NewLightEffect creates a LightEffect targeting the bridge at addr
// (host:port). Commands are validated up front so configuration mistakes
// surface at startup.
func NewLightEffect(addr string, commands []LightCommand) (*LightEffect, error) {
	if addr == "" {
		return nil, fmt.Errorf("light bridge address is required")
	}
	for i, c := range commands {
		if _, err := encodeLightCommand(c); err != nil {
			return nil, fmt.Errorf("light command %d: %w", i, err)
		}
	}

	return &LightEffect{
		addr:     addr,
		commands: commands,
	}, nil
}

// Name identifies the effect kind.
func (l *LightEffect) Name() string {
	return "lights"
}

// Run sends the command sequence to the bridge, pausing between datagrams.
func (l *LightEffect) Run(ctx context.Context) error {
	conn, err := net.Dial("udp", l.addr)
	if err != nil {
		return fmt.Errorf("dial light bridge %s: %w", l.addr, err)
	}
	defer conn.Close()

	for _, c := range l.commands {
		packet, err := encodeLightCommand(c)
		if err != nil {
			return err
		}
		if _, err := conn.Write(packet); err != nil {
			return fmt.Errorf("send %s to group %d: %w", c.Command, c.Group, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lightCommandPause):
		}
	}

	return nil
}

// encodeLightCommand translates a LightCommand into a 3-byte bridge
// datagram [opcode, argument, 0x55].
func encodeLightCommand(c LightCommand) ([]byte, error) {
	if c.Group < 0 || c.Group > 4 {
		return nil, fmt.Errorf("group %d out of range 0-4", c.Group)
	}

	switch c.Command {
	case "on":
		return []byte{lightOnCodes[c.Group], 0x00, 0x55}, nil
	case "off":
		return []byte{lightOffCodes[c.Group], 0x00, 0x55}, nil
	case "white":
		return []byte{lightWhiteCodes[c.Group], 0x00, 0x55}, nil
	case "brightness":
		if c.Payload < 0 || c.Payload > 100 {
			return nil, fmt.Errorf("brightness %d out of range 0-100", c.Payload)
		}
		// Bridge brightness steps are 2-27
		level := byte(2 + (c.Payload*25)/100)
		return []byte{0x4E, level, 0x55}, nil
	case "color":
		if c.Payload < 0 || c.Payload > 255 {
			return nil, fmt.Errorf("color hue %d out of range 0-255", c.Payload)
		}
		return []byte{0x40, byte(c.Payload), 0x55}, nil
	case "disco":
		return []byte{0x4D, 0x00, 0x55}, nil
	default:
		return nil, fmt.Errorf("unknown light command %q", c.Command)
	}
}
