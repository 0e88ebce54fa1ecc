// Package controller sequences detection, tracking, classification, and
// effect dispatch: the top-level state machine of the system.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jmfall/sortilege/internal/capture"
	"github.com/jmfall/sortilege/internal/classify"
	"github.com/jmfall/sortilege/internal/detector"
	"github.com/jmfall/sortilege/internal/sigil"
	"github.com/jmfall/sortilege/internal/store"
	"github.com/jmfall/sortilege/internal/track"
)

// Dispatcher hands a recognized spell label to the effect subsystem.
// Dispatch must not block; failures are the dispatcher's to report.
type Dispatcher interface {
	Dispatch(label string)
}

// Config holds controller parameters.
type Config struct {
	// FrameInterval is the frame pull cadence.
	FrameInterval time.Duration

	// MinTrajectoryLen is the minimum useful trajectory length. A track
	// lost below this length is noise and is discarded silently.
	MinTrajectoryLen int

	// ConfidenceThreshold is the minimum winning score for dispatch.
	ConfidenceThreshold float64

	// Cooldown is the mandatory idle interval after a dispatch,
	// preventing re-triggering on the same gesture's trailing frames.
	Cooldown time.Duration

	// NoSpellLabel is the background label; it never dispatches.
	NoSpellLabel string
}

// DefaultConfig returns controller parameters for a 15 FPS feed.
func DefaultConfig() Config {
	return Config{
		FrameInterval:       66 * time.Millisecond,
		MinTrajectoryLen:    15,
		ConfidenceThreshold: 0.6,
		Cooldown:            2 * time.Second,
		NoSpellLabel:        classify.NoSpellLabel,
	}
}

// Deps are the controller's collaborators. Source, Finder, Classifier,
// and Dispatcher are required; the rest are optional.
type Deps struct {
	Source     capture.Source
	Finder     detector.Finder
	Tracker    *track.Tracker
	Renderer   *sigil.Renderer
	Classifier classify.Classifier
	Dispatcher Dispatcher

	// Store and Archive persist cast history and sigil images.
	Store   *store.Store
	Archive *store.SigilArchive

	// Gate skips blob detection on motionless frames while idle.
	Gate *capture.MotionGate
}

// session is the lifecycle of one gesture. The controller owns exactly
// one at a time; it is created when tracking starts and destroyed on
// finalize or abandonment.
type session struct {
	id        string
	startedAt time.Time
}

// outcome is the result of one offloaded classification.
type outcome struct {
	sessionID string
	sigil     *sigil.Sigil
	result    classify.Result
	err       error
	points    int
	duration  time.Duration
}

// Controller owns the single active gesture session and drives the
// IDLE → TRACKING → CLASSIFYING → DISPATCHING → COOLDOWN cycle.
// All trajectory state is mutated on the Run goroutine only.
type Controller struct {
	config     Config
	source     capture.Source
	finder     detector.Finder
	tracker    *track.Tracker
	renderer   *sigil.Renderer
	classifier classify.Classifier
	dispatcher Dispatcher
	casts      *store.Store
	archive    *store.SigilArchive
	gate       *capture.MotionGate

	// resultCh carries the in-flight classification back to the loop.
	// Buffered so the worker goroutine never blocks on a stopped loop.
	resultCh chan outcome

	mu            sync.RWMutex
	state         State
	session       *session
	cooldownUntil time.Time
	enabled       bool
	stats         Stats
	listeners     []func(Event)
}

// New creates a Controller. Tracker and Renderer default when nil.
func New(config Config, deps Deps) (*Controller, error) {
	if deps.Source == nil {
		return nil, errors.New("controller requires a video source")
	}
	if deps.Finder == nil {
		return nil, errors.New("controller requires a blob finder")
	}
	if deps.Classifier == nil {
		return nil, errors.New("controller requires a classifier")
	}
	if deps.Dispatcher == nil {
		return nil, errors.New("controller requires a dispatcher")
	}

	tracker := deps.Tracker
	if tracker == nil {
		tracker = track.New(track.DefaultConfig())
	}
	renderer := deps.Renderer
	if renderer == nil {
		renderer = sigil.NewRenderer(sigil.DefaultConfig())
	}

	return &Controller{
		config:     config,
		source:     deps.Source,
		finder:     deps.Finder,
		tracker:    tracker,
		renderer:   renderer,
		classifier: deps.Classifier,
		dispatcher: deps.Dispatcher,
		casts:      deps.Store,
		archive:    deps.Archive,
		gate:       deps.Gate,
		resultCh:   make(chan outcome, 1),
		state:      StateIdle,
		enabled:    true,
	}, nil
}

// Run pulls frames and advances the state machine until ctx is cancelled
// or the frame source fails. Frame-source failure is fatal and returned;
// every other fault is absorbed. On cancellation any in-progress
// trajectory is discarded without classification.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.source.Open(); err != nil {
		return fmt.Errorf("open video source: %w", err)
	}
	defer c.source.Close()

	ticker := time.NewTicker(c.config.FrameInterval)
	defer ticker.Stop()

	log.Println("Controller started")
	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return nil
		case out := <-c.resultCh:
			c.finishClassification(out, time.Now())
		case <-ticker.C:
			if !c.IsEnabled() {
				continue
			}
			if err := c.processFrame(time.Now()); err != nil {
				c.shutdown()
				return err
			}
		}
	}
}

// processFrame reads and processes one frame. Only frame-source errors
// are returned; they end the run loop.
func (c *Controller) processFrame(now time.Time) error {
	frame, err := c.source.ReadFrame()
	if err != nil {
		return fmt.Errorf("frame source: %w", err)
	}
	defer frame.Close()

	c.mu.Lock()
	c.stats.Frames++
	state := c.state
	c.mu.Unlock()

	// No second gesture while one is mid-classification: drop this
	// frame's detections entirely.
	if state == StateClassifying || state == StateDispatching {
		return nil
	}

	if state == StateIdle && c.gate != nil {
		if moving, _ := c.gate.Detect(frame); !moving {
			return nil
		}
	}

	blobs, err := c.finder.Detect(frame)
	if err != nil {
		// Detection faults are transient; degrade to "no blobs seen".
		log.Printf("Blob detection failed: %v", err)
		return nil
	}

	c.step(blobs, now)
	return nil
}

// step advances the state machine with one frame's detections.
func (c *Controller) step(blobs []detector.Blob, now time.Time) {
	switch c.State() {
	case StateCooldown:
		if !now.Before(c.cooldownUntil) {
			c.setState(StateIdle, Event{State: StateIdle})
		}

	case StateIdle:
		ev := c.tracker.Update(blobs, now)
		if ev.Kind == track.EventAppended {
			c.mu.Lock()
			c.session = &session{id: uuid.NewString(), startedAt: now}
			c.stats.GesturesStarted++
			c.mu.Unlock()
			c.setState(StateTracking, Event{State: StateTracking})
		}

	case StateTracking:
		ev := c.tracker.Update(blobs, now)
		switch ev.Kind {
		case track.EventAppended, track.EventNone:
			if c.tracker.Full(now) {
				trajectory := c.tracker.Trajectory()
				c.tracker.Reset()
				c.finalize(trajectory)
			}
		case track.EventLost:
			if len(ev.Trajectory) < c.config.MinTrajectoryLen {
				// Noise, not a gesture: discard silently.
				c.discard()
			} else {
				c.finalize(ev.Trajectory)
			}
		}
	}
}

// finalize renders the trajectory and offloads classification so frame
// ingestion is not blocked by a slow model.
func (c *Controller) finalize(trajectory []track.Point) {
	c.mu.RLock()
	sess := c.session
	c.mu.RUnlock()
	if sess == nil {
		return
	}

	s, err := c.renderer.Render(trajectory)
	if err != nil {
		log.Printf("Sigil render failed: %v", err)
		c.discard()
		return
	}

	c.mu.Lock()
	c.stats.GesturesFinalized++
	c.mu.Unlock()
	c.setState(StateClassifying, Event{State: StateClassifying})

	duration := trajectory[len(trajectory)-1].Timestamp.Sub(trajectory[0].Timestamp)
	points := len(trajectory)
	sessionID := sess.id

	go func() {
		result, err := c.classifier.Classify(s)
		c.resultCh <- outcome{
			sessionID: sessionID,
			sigil:     s,
			result:    result,
			err:       err,
			points:    points,
			duration:  duration,
		}
	}()
}

// finishClassification consumes an offloaded classification result and
// advances to DISPATCHING/COOLDOWN or back to IDLE.
func (c *Controller) finishClassification(out outcome, now time.Time) {
	defer out.sigil.Close()

	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()

	if out.err != nil {
		// The classifier is an external collaborator; its failures
		// must not take the loop down.
		log.Printf("Classification failed, returning to idle: %v", out.err)
		c.mu.Lock()
		c.stats.ClassifyErrors++
		c.mu.Unlock()
		c.setState(StateIdle, Event{State: StateIdle})
		return
	}

	label, score := classify.Best(out.result)
	if label == "" || label == c.config.NoSpellLabel || score < c.config.ConfidenceThreshold {
		log.Printf("No spell recognized (best %q at %.2f), returning to idle", label, score)
		c.mu.Lock()
		c.stats.SpellsRejected++
		c.mu.Unlock()
		c.setState(StateIdle, Event{State: StateIdle})
		return
	}

	log.Printf("Spell recognized: %s (score %.2f)", label, score)
	c.setState(StateDispatching, Event{State: StateDispatching, Label: label, Score: score})

	// Fire-and-forget: the dispatcher owns effect execution and its
	// failures.
	c.dispatcher.Dispatch(label)

	c.mu.Lock()
	c.stats.SpellsDispatched++
	c.cooldownUntil = now.Add(c.config.Cooldown)
	c.mu.Unlock()

	c.recordCast(out, label, score)
	c.setState(StateCooldown, Event{State: StateCooldown, Label: label, Score: score})
}

// recordCast persists the cast and archives the sigil image, when a
// store is configured. Persistence failures are logged only.
func (c *Controller) recordCast(out outcome, label string, score float64) {
	if c.casts == nil {
		return
	}

	cast := &store.Cast{
		ID:         out.sessionID,
		Label:      label,
		Score:      score,
		Points:     out.points,
		DurationMs: out.duration.Milliseconds(),
		Dispatched: true,
	}

	if c.archive != nil && out.sigil.Mode == sigil.ModeImage && !out.sigil.Image.Empty() {
		if img, err := out.sigil.Image.ToImage(); err == nil {
			if path, err := c.archive.Save(cast.ID, img); err == nil {
				cast.SigilPath = path
			} else {
				log.Printf("Sigil archive failed: %v", err)
			}
		}
	}

	if err := c.casts.Casts().Create(cast); err != nil {
		log.Printf("Cast history insert failed: %v", err)
	}
}

// discard drops the current gesture without classification.
func (c *Controller) discard() {
	c.tracker.Reset()
	c.mu.Lock()
	c.session = nil
	c.stats.GesturesDiscarded++
	c.mu.Unlock()
	c.setState(StateIdle, Event{State: StateIdle})
}

// shutdown discards any partial gesture and drains an in-flight
// classification result. Partial gestures are never classified on
// shutdown.
func (c *Controller) shutdown() {
	c.mu.Lock()
	abandoned := c.session != nil
	c.session = nil
	c.mu.Unlock()

	c.tracker.Reset()
	if abandoned {
		log.Println("Shutting down mid-gesture, trajectory discarded")
	}

	select {
	case out := <-c.resultCh:
		out.sigil.Close()
	default:
	}

	log.Println("Controller stopped")
}

// setState records the transition and notifies listeners.
func (c *Controller) setState(s State, ev Event) {
	c.mu.Lock()
	c.state = s
	listeners := c.listeners
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(ev)
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Stats returns a copy of the counters.
func (c *Controller) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// SetEnabled pauses or resumes detection while keeping the loop alive.
func (c *Controller) SetEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = enabled
}

// IsEnabled returns whether detection is currently enabled.
func (c *Controller) IsEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.enabled
}

// OnEvent registers a transition listener. Listeners run on the loop
// goroutine and must not block.
func (c *Controller) OnEvent(fn func(Event)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}
