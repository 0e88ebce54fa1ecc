package effects

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"
	"time"
)

// DefaultDispatchTimeout bounds how long one spell's effect sequence may
// run before it is cancelled.
const DefaultDispatchTimeout = 30 * time.Second

// entrySpec is one entry of a spell's effect list in the configuration
// file. Exactly one field must be set.
type entrySpec struct {
	Audio  *audioSpec  `json:"audio,omitempty"`
	Lights *lightsSpec `json:"lights,omitempty"`
	LED    *ledSpec    `json:"led,omitempty"`
}

type audioSpec struct {
	File   string   `json:"file"`
	Player string   `json:"player,omitempty"`
	Args   []string `json:"args,omitempty"`
}

type lightsSpec struct {
	Addr     string         `json:"addr"`
	Commands []LightCommand `json:"commands"`
}

type ledSpec struct {
	Port  string    `json:"port"`
	Baud  int       `json:"baud,omitempty"`
	Steps []LEDStep `json:"steps"`
}

// Registry maps spell labels to their effect containers. It is built
// once at startup from the JSON configuration file:
//
//	{
//	  "alohomora": [
//	    {"audio": {"file": "sounds/alohomora.mp3"}},
//	    {"lights": {"addr": "192.168.1.50:8899",
//	                "commands": [{"group": 1, "command": "on"}]}}
//	  ]
//	}
type Registry struct {
	containers map[string]*Container
	timeout    time.Duration
}

// LoadRegistry reads and validates the effects configuration file.
// Every effect is fully constructed here so bad bindings fail at startup
// rather than at dispatch time.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read effects config %s: %w", path, err)
	}

	var raw map[string][]entrySpec
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse effects config %s: %w", path, err)
	}

	r := &Registry{
		containers: make(map[string]*Container, len(raw)),
		timeout:    DefaultDispatchTimeout,
	}

	for label, entries := range raw {
		container := &Container{Label: label}
		for i, entry := range entries {
			effect, err := buildEffect(entry)
			if err != nil {
				return nil, fmt.Errorf("spell %q entry %d: %w", label, i, err)
			}
			container.Effects = append(container.Effects, effect)
		}
		r.containers[label] = container
	}

	log.Printf("Loaded effects for %d spells from %s", len(r.containers), path)
	return r, nil
}

// NewRegistry builds a registry from pre-constructed containers. Used by
// tests and programmatic setups.
func NewRegistry(containers ...*Container) *Registry {
	r := &Registry{
		containers: make(map[string]*Container, len(containers)),
		timeout:    DefaultDispatchTimeout,
	}
	for _, c := range containers {
		r.containers[c.Label] = c
	}
	return r
}

func buildEffect(entry entrySpec) (Effect, error) {
	set := 0
	if entry.Audio != nil {
		set++
	}
	if entry.Lights != nil {
		set++
	}
	if entry.LED != nil {
		set++
	}
	if set != 1 {
		return nil, fmt.Errorf("each entry must set exactly one of audio, lights, led")
	}

	switch {
	case entry.Audio != nil:
		return NewAudioEffect(entry.Audio.Player, entry.Audio.Args, entry.Audio.File)
	case entry.Lights != nil:
		return NewLightEffect(entry.Lights.Addr, entry.Lights.Commands)
	default:
		return NewLEDEffect(entry.LED.Port, entry.LED.Baud, entry.LED.Steps)
	}
}

// SetTimeout overrides the per-dispatch effect timeout.
func (r *Registry) SetTimeout(d time.Duration) {
	if d > 0 {
		r.timeout = d
	}
}

// Labels returns the configured spell labels, sorted.
func (r *Registry) Labels() []string {
	labels := make([]string, 0, len(r.containers))
	for label := range r.containers {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// Container returns the effect container bound to the label.
func (r *Registry) Container(label string) (*Container, bool) {
	c, ok := r.containers[label]
	return c, ok
}

// Validate checks every configured label against the classifier's label
// set, so a typo in the config is caught at startup instead of silently
// never firing.
func (r *Registry) Validate(labels []string) error {
	known := make(map[string]bool, len(labels))
	for _, l := range labels {
		known[l] = true
	}

	for label := range r.containers {
		if !known[label] {
			return fmt.Errorf("effects config binds %q, which is not a classifier label (have %v)", label, labels)
		}
	}

	return nil
}

// Dispatch runs the effect sequence for the label on its own goroutine.
// It never blocks and never reports failure to the caller: an unknown
// label or a failing effect is logged and otherwise absorbed.
func (r *Registry) Dispatch(label string) {
	container, ok := r.containers[label]
	if !ok {
		log.Printf("No effects bound to %q, nothing to dispatch", label)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()

		log.Printf("Running effect sequence for %q", label)
		if err := container.Run(ctx); err != nil {
			log.Printf("Effect sequence for %q finished with errors: %v", label, err)
		}
	}()
}
