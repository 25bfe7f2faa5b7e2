package rtc

import (
	"sync"

	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"

	"github.com/avele/studyroom/internal/media"
)

// SampleTrack adapts a pion sample track to media.Track. The platform
// capture layer writes samples in; enable/disable gates writes so a
// muted track stays attached but silent.
type SampleTrack struct {
	kind  media.TrackKind
	local *webrtc.TrackLocalStaticSample

	mu      sync.Mutex
	enabled bool
	live    bool
	onEnded func()
}

func NewSampleTrack(kind media.TrackKind, codec webrtc.RTPCodecCapability, id, streamID string) (*SampleTrack, error) {
	local, err := webrtc.NewTrackLocalStaticSample(codec, id, streamID)
	if err != nil {
		return nil, err
	}
	return &SampleTrack{kind: kind, local: local, enabled: true, live: true}, nil
}

func (t *SampleTrack) Kind() media.TrackKind { return t.kind }

func (t *SampleTrack) ID() string { return t.local.ID() }

func (t *SampleTrack) WebRTC() webrtc.TrackLocal { return t.local }

func (t *SampleTrack) SetEnabled(enabled bool) {
	t.mu.Lock()
	t.enabled = enabled
	t.mu.Unlock()
}

func (t *SampleTrack) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *SampleTrack) Live() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.live
}

// Stop ends the track. The ended hook fires only for external stops
// (WriteEnded), matching OS-chrome share termination.
func (t *SampleTrack) Stop() {
	t.mu.Lock()
	t.live = false
	t.onEnded = nil
	t.mu.Unlock()
}

func (t *SampleTrack) OnEnded(fn func()) {
	t.mu.Lock()
	t.onEnded = fn
	t.mu.Unlock()
}

// WriteEnded is called by the capture layer when the source dies
// outside the app (device unplugged, share stopped via OS chrome).
func (t *SampleTrack) WriteEnded() {
	t.mu.Lock()
	t.live = false
	fn := t.onEnded
	t.onEnded = nil
	t.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// WriteSample forwards one media sample when the track is enabled.
func (t *SampleTrack) WriteSample(sample pionmedia.Sample) error {
	t.mu.Lock()
	enabled, live := t.enabled, t.live
	t.mu.Unlock()
	if !live || !enabled {
		return nil
	}
	return t.local.WriteSample(sample)
}
