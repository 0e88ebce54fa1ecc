// Package effects runs the audio, light, and LED sequences bound to
// recognized spells.
package effects

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// Effect is a single renderable effect: a sound, a light sequence, an LED
// animation.
type Effect interface {
	// Name identifies the effect kind for logging.
	Name() string

	// Run performs the effect, honoring ctx cancellation.
	Run(ctx context.Context) error
}

// Container is the ordered list of effects bound to one spell label.
// Effects run sequentially; audio is conventionally listed first since
// the player runs in the background.
type Container struct {
	Label   string
	Effects []Effect
}

// Run executes every effect in order. A failing effect does not stop the
// rest; all failures are collected into the returned error.
func (c *Container) Run(ctx context.Context) error {
	var errs []error

	for _, e := range c.Effects {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := e.Run(ctx); err != nil {
			log.Printf("Effect %s for %q failed: %v", e.Name(), c.Label, err)
			errs = append(errs, fmt.Errorf("%s: %w", e.Name(), err))
		}
	}

	return errors.Join(errs...)
}
