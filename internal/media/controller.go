package media

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

type State int32

const (
	StateUninitialized State = iota
	StateAcquiring
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAcquiring:
		return "acquiring"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "uninitialized"
	}
}

// Snapshot is the local-only MediaState for UI feedback.
type Snapshot struct {
	State         State
	MicEnabled    bool
	CameraEnabled bool
	Sharing       bool
	Failure       *CaptureError
}

// Controller drives the capture state machine. Track stops always run
// outside the lock so a synchronous end hook cannot deadlock; stale
// hooks are disarmed by the share epoch.
type Controller struct {
	provider Provider
	sink     Sink

	mu      sync.Mutex
	state   State
	failure *CaptureError

	audio       Track
	video       Track // track currently feeding the sink's video slot
	screen      Track
	savedCamera Track // camera parked while sharing

	micEnabled    bool
	cameraEnabled bool
	sharing       bool

	epoch int // bumped on every share start/stop to invalidate hooks
}

func NewController(provider Provider, sink Sink) *Controller {
	return &Controller{provider: provider, sink: sink}
}

// Acquire requests combined audio+video capture. Retryable at any
// time; any previously acquired tracks are stopped before the new
// acquisition begins. On failure no stream is produced and the typed
// reason is kept.
func (c *Controller) Acquire(ctx context.Context) error {
	c.mu.Lock()
	old := c.collectTracksLocked()
	c.detachLocked()
	c.state = StateAcquiring
	c.failure = nil
	c.mu.Unlock()
	stopAll(old)

	audio, video, err := c.provider.AcquireAudioVideo(ctx)
	if err != nil {
		ce := Classify(err)
		c.mu.Lock()
		c.state = StateFailed
		c.failure = ce
		c.mu.Unlock()
		log.Warn().Str("module", "media").Str("reason", ce.Kind.String()).Msg("acquire failed")
		return ce
	}

	c.mu.Lock()
	c.audio = audio
	c.video = video
	c.micEnabled = true
	c.cameraEnabled = true
	c.sharing = false
	c.state = StateReady
	err = c.attachLocked(audio, video)
	c.mu.Unlock()
	if err != nil {
		return Classify(err)
	}
	log.Info().Str("module", "media").Msg("local media ready")
	return nil
}

// ToggleMute flips the microphone flag and its track; no-op unless a
// stream is ready.
func (c *Controller) ToggleMute() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateReady || c.audio == nil {
		return c.micEnabled
	}
	c.micEnabled = !c.micEnabled
	c.audio.SetEnabled(c.micEnabled)
	return c.micEnabled
}

// ToggleCamera flips the camera flag; forbidden while screen share is
// active.
func (c *Controller) ToggleCamera() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sharing {
		return c.cameraEnabled, ErrScreenShareActive
	}
	if c.state != StateReady || c.video == nil {
		return c.cameraEnabled, nil
	}
	c.cameraEnabled = !c.cameraEnabled
	c.video.SetEnabled(c.cameraEnabled)
	return c.cameraEnabled, nil
}

// StartScreenShare swaps the screen track into the video slot, leaving
// audio untouched. With no stream acquired it bootstraps a screen-only
// stream. Declining the prompt fails without mutating existing state.
func (c *Controller) StartScreenShare(ctx context.Context) error {
	c.mu.Lock()
	if c.sharing {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	screen, err := c.provider.AcquireScreen(ctx)
	if err != nil {
		return Classify(err)
	}

	c.mu.Lock()
	if c.sharing {
		// raced with another start; keep the first share
		c.mu.Unlock()
		screen.Stop()
		return nil
	}
	c.savedCamera = c.video
	c.screen = screen
	c.video = screen
	c.sharing = true
	c.cameraEnabled = false
	if c.state != StateReady {
		// screen-only bootstrap
		c.state = StateReady
		c.failure = nil
		c.micEnabled = false
	}
	c.epoch++
	epoch := c.epoch
	c.mu.Unlock()

	// Arm the hook before attaching so an end racing the attach cannot
	// slip through unobserved.
	screen.OnEnded(func() { c.onScreenEnded(epoch) })

	c.mu.Lock()
	if epoch != c.epoch {
		// the hook already fired and restored the camera
		c.mu.Unlock()
		return nil
	}
	attachErr := c.sink.SetVideo(screen)
	c.mu.Unlock()
	if attachErr != nil {
		return Classify(attachErr)
	}
	if !screen.Live() {
		// ended before the hook was registered; run the teardown the
		// hook would have run
		c.onScreenEnded(epoch)
		return nil
	}
	log.Info().Str("module", "media").Msg("screen share started")
	return nil
}

// StopScreenShare is the explicit inverse: stop the screen track and
// restore the saved camera, re-acquiring a fresh one if it is no
// longer usable.
func (c *Controller) StopScreenShare(ctx context.Context) error {
	c.mu.Lock()
	if !c.sharing {
		c.mu.Unlock()
		return nil
	}
	c.epoch++ // disarm the OS-chrome hook before stopping the track
	screen := c.screen
	c.screen = nil
	c.mu.Unlock()

	if screen != nil {
		screen.Stop()
	}
	return c.restoreCamera(ctx)
}

// onScreenEnded handles the user stopping the share through the OS
// chrome. A stale epoch means an explicit stop or a newer share
// already handled it.
func (c *Controller) onScreenEnded(epoch int) {
	c.mu.Lock()
	if epoch != c.epoch || !c.sharing {
		c.mu.Unlock()
		return
	}
	c.epoch++
	c.screen = nil
	c.mu.Unlock()

	log.Info().Str("module", "media").Msg("screen share ended externally")
	if err := c.restoreCamera(context.Background()); err != nil {
		log.Warn().Err(err).Str("module", "media").Msg("camera restore failed")
	}
}

func (c *Controller) restoreCamera(ctx context.Context) error {
	c.mu.Lock()
	camera := c.savedCamera
	c.savedCamera = nil
	c.sharing = false
	c.mu.Unlock()

	if camera == nil || !camera.Live() {
		fresh, err := c.provider.AcquireCamera(ctx)
		if err != nil {
			ce := Classify(err)
			c.mu.Lock()
			c.video = nil
			c.cameraEnabled = false
			_ = c.sink.SetVideo(nil)
			c.mu.Unlock()
			log.Warn().Str("module", "media").Str("reason", ce.Kind.String()).Msg("camera re-acquire failed")
			return ce
		}
		camera = fresh
	}

	c.mu.Lock()
	c.video = camera
	c.cameraEnabled = true
	camera.SetEnabled(true)
	err := c.sink.SetVideo(camera)
	c.mu.Unlock()
	if err != nil {
		return Classify(err)
	}
	log.Info().Str("module", "media").Msg("camera restored")
	return nil
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		State:         c.state,
		MicEnabled:    c.micEnabled,
		CameraEnabled: c.cameraEnabled,
		Sharing:       c.sharing,
		Failure:       c.failure,
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Close stops everything and detaches the sink.
func (c *Controller) Close() {
	c.mu.Lock()
	old := c.collectTracksLocked()
	c.detachLocked()
	c.state = StateUninitialized
	c.mu.Unlock()
	stopAll(old)
}

func (c *Controller) collectTracksLocked() []Track {
	var out []Track
	for _, t := range []Track{c.audio, c.video, c.screen, c.savedCamera} {
		if t != nil {
			out = append(out, t)
		}
	}
	return out
}

func (c *Controller) detachLocked() {
	c.epoch++
	if c.audio != nil {
		_ = c.sink.SetAudio(nil)
	}
	if c.video != nil {
		_ = c.sink.SetVideo(nil)
	}
	c.audio, c.video, c.screen, c.savedCamera = nil, nil, nil, nil
	c.micEnabled, c.cameraEnabled, c.sharing = false, false, false
}

func stopAll(tracks []Track) {
	seen := make(map[string]bool, len(tracks))
	for _, t := range tracks {
		if seen[t.ID()] {
			continue
		}
		seen[t.ID()] = true
		t.Stop()
	}
}

func (c *Controller) attachLocked(audio, video Track) error {
	if err := c.sink.SetAudio(audio); err != nil {
		return err
	}
	return c.sink.SetVideo(video)
}
