// Package media owns the local capture pipeline: microphone, camera
// and screen share. MediaState is never shared with the room; a media
// failure must not block room participation.
package media

import (
	"context"
	"errors"
	"fmt"
)

type ErrorKind int

const (
	ErrOther ErrorKind = iota
	ErrPermissionDenied
	ErrDeviceNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case ErrPermissionDenied:
		return "permission_denied"
	case ErrDeviceNotFound:
		return "device_not_found"
	default:
		return "other"
	}
}

// CaptureError is the typed reason a device operation failed.
type CaptureError struct {
	Kind ErrorKind
	Err  error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("capture %s: %v", e.Kind, e.Err)
}

func (e *CaptureError) Unwrap() error { return e.Err }

// Classify wraps err as a CaptureError, keeping an existing kind.
func Classify(err error) *CaptureError {
	var ce *CaptureError
	if errors.As(err, &ce) {
		return ce
	}
	return &CaptureError{Kind: ErrOther, Err: err}
}

// ErrScreenShareActive guards ToggleCamera: while sharing, camera
// video is always suppressed in the outgoing stream.
var ErrScreenShareActive = errors.New("camera toggle forbidden while screen share is active")

type TrackKind string

const (
	TrackAudio TrackKind = "audio"
	TrackVideo TrackKind = "video"
)

// Track is one live capture track. OnEnded fires when the source
// stops outside this app's control (OS screen-share chrome).
type Track interface {
	Kind() TrackKind
	ID() string
	SetEnabled(enabled bool)
	Enabled() bool
	Stop()
	Live() bool
	OnEnded(fn func())
}

// Provider is the device capture collaborator. AcquireCamera exists so
// a dead saved camera track can be replaced after a screen share.
type Provider interface {
	AcquireAudioVideo(ctx context.Context) (audio, video Track, err error)
	AcquireScreen(ctx context.Context) (Track, error)
	AcquireCamera(ctx context.Context) (Track, error)
}

// Sink is the outgoing local stream. SetVideo replaces the current
// video source in one step; nil detaches it. Implementations must
// never hold two video tracks at once.
type Sink interface {
	SetAudio(Track) error
	SetVideo(Track) error
}
