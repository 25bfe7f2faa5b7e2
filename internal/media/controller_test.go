package media

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avele/studyroom/internal/channel"
	"github.com/avele/studyroom/internal/domain"
	"github.com/avele/studyroom/internal/store"
)

// fakeTrack implements Track and can be ended externally, like a
// screen share stopped through the OS chrome.
type fakeTrack struct {
	mu      sync.Mutex
	kind    TrackKind
	id      string
	enabled bool
	live    bool
	onEnded func()
}

func newFakeTrack(kind TrackKind, id string) *fakeTrack {
	return &fakeTrack{kind: kind, id: id, enabled: true, live: true}
}

func (t *fakeTrack) Kind() TrackKind { return t.kind }
func (t *fakeTrack) ID() string      { return t.id }

func (t *fakeTrack) SetEnabled(enabled bool) {
	t.mu.Lock()
	t.enabled = enabled
	t.mu.Unlock()
}

func (t *fakeTrack) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *fakeTrack) Stop() {
	t.mu.Lock()
	t.live = false
	t.onEnded = nil
	t.mu.Unlock()
}

func (t *fakeTrack) Live() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.live
}

func (t *fakeTrack) OnEnded(fn func()) {
	t.mu.Lock()
	t.onEnded = fn
	t.mu.Unlock()
}

// endExternally simulates the source dying outside the app and fires
// the hook synchronously, the worst case for lock ordering.
func (t *fakeTrack) endExternally() {
	t.mu.Lock()
	t.live = false
	fn := t.onEnded
	t.onEnded = nil
	t.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// fakeSink records the full history of video substitutions so tests
// can check there is never a double-attach or an unwanted gap.
type fakeSink struct {
	mu           sync.Mutex
	audio, video Track
	videoHistory []string // track ids, "" for detach
}

func (s *fakeSink) SetAudio(t Track) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audio = t
	return nil
}

func (s *fakeSink) SetVideo(t Track) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.video = t
	if t == nil {
		s.videoHistory = append(s.videoHistory, "")
	} else {
		s.videoHistory = append(s.videoHistory, t.ID())
	}
	return nil
}

func (s *fakeSink) currentVideo() Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.video
}

func (s *fakeSink) history() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.videoHistory...)
}

// fakeProvider hands out fresh tracks per acquisition and can be
// scripted to fail.
type fakeProvider struct {
	mu         sync.Mutex
	fail       error
	screenFail error
	cameraFail error
	screenDead bool
	acquired   int
	cameras    int
	screens    int
	lastScreen *fakeTrack
}

func (p *fakeProvider) AcquireAudioVideo(context.Context) (Track, Track, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return nil, nil, p.fail
	}
	p.acquired++
	audio := newFakeTrack(TrackAudio, fmt.Sprintf("mic-%d", p.acquired))
	video := newFakeTrack(TrackVideo, fmt.Sprintf("cam-%d", p.acquired))
	return audio, video, nil
}

func (p *fakeProvider) AcquireScreen(context.Context) (Track, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.screenFail != nil {
		return nil, p.screenFail
	}
	p.screens++
	p.lastScreen = newFakeTrack(TrackVideo, fmt.Sprintf("screen-%d", p.screens))
	if p.screenDead {
		// ended between acquisition and hook registration; the end
		// event is already gone
		p.lastScreen.live = false
	}
	return p.lastScreen, nil
}

func (p *fakeProvider) AcquireCamera(context.Context) (Track, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cameraFail != nil {
		return nil, p.cameraFail
	}
	p.cameras++
	return newFakeTrack(TrackVideo, fmt.Sprintf("fresh-cam-%d", p.cameras)), nil
}

func newReadyController(t *testing.T) (*Controller, *fakeProvider, *fakeSink) {
	t.Helper()
	provider := &fakeProvider{}
	sink := &fakeSink{}
	c := NewController(provider, sink)
	require.NoError(t, c.Acquire(context.Background()))
	return c, provider, sink
}

func TestAcquireTransitionsToReady(t *testing.T) {
	c, _, sink := newReadyController(t)

	snap := c.Snapshot()
	assert.Equal(t, StateReady, snap.State)
	assert.True(t, snap.MicEnabled)
	assert.True(t, snap.CameraEnabled)
	assert.False(t, snap.Sharing)
	assert.NotNil(t, sink.currentVideo())
}

func TestAcquireFailureKeepsTypedReason(t *testing.T) {
	for _, kind := range []ErrorKind{ErrPermissionDenied, ErrDeviceNotFound, ErrOther} {
		provider := &fakeProvider{fail: &CaptureError{Kind: kind, Err: errors.New("denied")}}
		sink := &fakeSink{}
		c := NewController(provider, sink)

		err := c.Acquire(context.Background())
		require.Error(t, err)

		var ce *CaptureError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, kind, ce.Kind)
		assert.Equal(t, StateFailed, c.State())
		assert.Nil(t, sink.currentVideo(), "no stream on failure")
	}
}

func TestAcquireRetryRecoversFromFailure(t *testing.T) {
	provider := &fakeProvider{fail: &CaptureError{Kind: ErrDeviceNotFound, Err: errors.New("no camera")}}
	sink := &fakeSink{}
	c := NewController(provider, sink)

	require.Error(t, c.Acquire(context.Background()))
	require.Equal(t, StateFailed, c.State())

	provider.mu.Lock()
	provider.fail = nil
	provider.mu.Unlock()

	require.NoError(t, c.Acquire(context.Background()))
	snap := c.Snapshot()
	assert.Equal(t, StateReady, snap.State)
	assert.Nil(t, snap.Failure)
}

func TestAcquireRetryStopsPreviousTracks(t *testing.T) {
	c, _, sink := newReadyController(t)
	firstVideo := sink.currentVideo()

	require.NoError(t, c.Acquire(context.Background()))
	assert.False(t, firstVideo.Live(), "old track stopped before re-acquisition")
	assert.NotEqual(t, firstVideo.ID(), sink.currentVideo().ID())
}

func TestToggleMuteFlipsAudioTrack(t *testing.T) {
	c, _, sink := newReadyController(t)

	assert.False(t, c.ToggleMute())
	sink.mu.Lock()
	audio := sink.audio
	sink.mu.Unlock()
	assert.False(t, audio.Enabled())

	assert.True(t, c.ToggleMute())
	assert.True(t, audio.Enabled())
}

func TestToggleMuteNoOpWithoutStream(t *testing.T) {
	c := NewController(&fakeProvider{}, &fakeSink{})
	assert.False(t, c.ToggleMute())
	assert.Equal(t, StateUninitialized, c.State())
}

func TestToggleCameraForbiddenWhileSharing(t *testing.T) {
	c, _, _ := newReadyController(t)
	require.NoError(t, c.StartScreenShare(context.Background()))

	_, err := c.ToggleCamera()
	assert.ErrorIs(t, err, ErrScreenShareActive)
}

func TestScreenShareSubstitutesVideoOnly(t *testing.T) {
	c, provider, sink := newReadyController(t)
	camera := sink.currentVideo()
	sink.mu.Lock()
	audio := sink.audio
	sink.mu.Unlock()

	require.NoError(t, c.StartScreenShare(context.Background()))

	assert.Equal(t, provider.lastScreen.ID(), sink.currentVideo().ID())
	sink.mu.Lock()
	sameAudio := sink.audio == audio
	sink.mu.Unlock()
	assert.True(t, sameAudio, "audio track untouched")
	assert.True(t, camera.Live(), "camera saved, not stopped")

	snap := c.Snapshot()
	assert.True(t, snap.Sharing)
	assert.False(t, snap.CameraEnabled)
}

func TestStopScreenShareRestoresExactCameraTrack(t *testing.T) {
	c, _, sink := newReadyController(t)
	camera := sink.currentVideo()

	require.NoError(t, c.StartScreenShare(context.Background()))
	screen := sink.currentVideo()
	require.NoError(t, c.StopScreenShare(context.Background()))

	assert.False(t, screen.Live(), "screen track stopped")
	assert.Same(t, camera, sink.currentVideo(), "exact saved camera reference restored")

	snap := c.Snapshot()
	assert.False(t, snap.Sharing)
	assert.True(t, snap.CameraEnabled)
}

func TestStopScreenShareReacquiresDeadCamera(t *testing.T) {
	c, provider, sink := newReadyController(t)
	camera := sink.currentVideo().(*fakeTrack)

	require.NoError(t, c.StartScreenShare(context.Background()))
	camera.Stop() // saved track dies while sharing
	require.NoError(t, c.StopScreenShare(context.Background()))

	restored := sink.currentVideo()
	assert.NotSame(t, camera, restored)
	assert.Equal(t, 1, provider.cameras, "fresh camera acquired")
	assert.True(t, c.Snapshot().CameraEnabled)
}

func TestExternalShareEndRestoresCamera(t *testing.T) {
	c, provider, sink := newReadyController(t)
	camera := sink.currentVideo()

	require.NoError(t, c.StartScreenShare(context.Background()))
	provider.lastScreen.endExternally() // OS chrome stop, synchronous hook

	assert.Same(t, camera, sink.currentVideo())
	snap := c.Snapshot()
	assert.False(t, snap.Sharing)
	assert.True(t, snap.CameraEnabled)
}

func TestScreenShareDeadBeforeHookStillRestores(t *testing.T) {
	c, provider, sink := newReadyController(t)
	camera := sink.currentVideo()
	provider.screenDead = true

	require.NoError(t, c.StartScreenShare(context.Background()))

	assert.Same(t, camera, sink.currentVideo())
	snap := c.Snapshot()
	assert.False(t, snap.Sharing, "not left sharing a dead track")
	assert.True(t, snap.CameraEnabled)

	_, err := c.ToggleCamera()
	assert.NoError(t, err, "camera not locked out")
}

func TestScreenPromptDeclinedMutatesNothing(t *testing.T) {
	c, provider, sink := newReadyController(t)
	provider.screenFail = &CaptureError{Kind: ErrPermissionDenied, Err: errors.New("declined")}
	camera := sink.currentVideo()

	err := c.StartScreenShare(context.Background())
	var ce *CaptureError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrPermissionDenied, ce.Kind)

	assert.Same(t, camera, sink.currentVideo())
	snap := c.Snapshot()
	assert.False(t, snap.Sharing)
	assert.True(t, snap.CameraEnabled)
}

func TestScreenShareBootstrapsWithoutStream(t *testing.T) {
	provider := &fakeProvider{}
	sink := &fakeSink{}
	c := NewController(provider, sink)

	require.NoError(t, c.StartScreenShare(context.Background()))

	snap := c.Snapshot()
	assert.Equal(t, StateReady, snap.State)
	assert.True(t, snap.Sharing)
	assert.False(t, snap.MicEnabled, "screen-only stream has no mic")
	assert.Equal(t, provider.lastScreen.ID(), sink.currentVideo().ID())
}

// At every instant the outgoing stream holds at most one video track:
// the substitution history is camera -> screen -> camera with no
// detach gaps and no double-attach.
func TestSingleVideoTrackAcrossShareCycle(t *testing.T) {
	c, _, sink := newReadyController(t)

	require.NoError(t, c.StartScreenShare(context.Background()))
	require.NoError(t, c.StopScreenShare(context.Background()))

	history := sink.history()
	require.Len(t, history, 3)
	assert.Equal(t, "cam-1", history[0])
	assert.Equal(t, "screen-1", history[1])
	assert.Equal(t, "cam-1", history[2])
	for _, id := range history {
		assert.NotEmpty(t, id, "no detach gap during substitution")
	}
}

func TestStopWithoutShareIsNoOp(t *testing.T) {
	c, _, sink := newReadyController(t)
	camera := sink.currentVideo()

	require.NoError(t, c.StopScreenShare(context.Background()))
	assert.Same(t, camera, sink.currentVideo())
}

// A denied capture prompt leaves the media controller failed, and the
// room's channels keep synchronizing as if nothing happened.
func TestCaptureFailureDoesNotBlockChannelSync(t *testing.T) {
	provider := &fakeProvider{fail: &CaptureError{Kind: ErrPermissionDenied, Err: errors.New("denied")}}
	c := NewController(provider, &fakeSink{})
	require.Error(t, c.Acquire(context.Background()))
	require.Equal(t, StateFailed, c.State())

	st := store.NewMemStore()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	b := channel.New(ctx, st, 20*time.Millisecond)

	room, err := domain.NewRoom("study", "", "", 4,
		domain.Participant{Identity: "a@example.com", Name: "Ann"})
	require.NoError(t, err)
	require.NoError(t, st.CreateRoom(context.Background(), room))

	var msgs atomic.Int64
	cancelMsgs := b.SubscribeMessages(room.ID, func(m []domain.ChatMessage) {
		msgs.Store(int64(len(m)))
	})
	defer cancelMsgs()
	var note atomic.Value
	cancelNotes := b.SubscribeNotes(room.ID, func(n domain.SharedNote) { note.Store(n.Text) })
	defer cancelNotes()

	_, err = b.SendMessage(context.Background(), room.ID, domain.NewChatMessage("a@example.com", "still here"))
	require.NoError(t, err)
	require.NoError(t, b.SaveNotes(context.Background(), room.ID, "shared text"))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		v, _ := note.Load().(string)
		if msgs.Load() == 1 && v == "shared text" {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, int64(1), msgs.Load())
	v, _ := note.Load().(string)
	assert.Equal(t, "shared text", v)
}
