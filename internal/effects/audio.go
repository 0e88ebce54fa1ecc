package effects

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
)

// DefaultPlayer is the external command used to play audio files.
const DefaultPlayer = "mplayer"

// AudioEffect plays a sound file through an external player process.
type AudioEffect struct {
	player string
	args   []string
	file   string
}

// NewAudioEffect creates an AudioEffect for the given file. The file must
// exist at configuration time so broken bindings surface at startup, not
// mid-spell. An empty player falls back to DefaultPlayer.
func NewAudioEffect(player string, args []string, file string) (*AudioEffect, error) {
	if player == "" {
		player = DefaultPlayer
	}
	if _, err := os.Stat(file); err != nil {
		return nil, fmt.Errorf("audio file %s: %w", file, err)
	}

	return &AudioEffect{
		player: player,
		args:   args,
		file:   file,
	}, nil
}

// Name identifies the effect kind.
func (a *AudioEffect) Name() string {
	return "audio"
}

// Run plays the file, blocking until the player exits or ctx is done.
func (a *AudioEffect) Run(ctx context.Context) error {
	args := append(append([]string{}, a.args...), a.file)
	cmd := exec.CommandContext(ctx, a.player, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("player interrupted: %w", ctx.Err())
		}
		if stderr.Len() > 0 {
			return fmt.Errorf("player failed: %w, stderr: %s", err, stderr.String())
		}
		return fmt.Errorf("player failed: %w", err)
	}

	return nil
}
