// Package rtc binds the media controller's active tracks to a pion
// PeerConnection. Video substitution goes through ReplaceTrack on a
// single RTPSender, so the outgoing stream can never carry two video
// tracks.
package rtc

import (
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/avele/studyroom/internal/media"
)

// LocalTrack is a media.Track that can feed a PeerConnection.
type LocalTrack interface {
	media.Track
	WebRTC() webrtc.TrackLocal
}

var ErrNotLocalTrack = errors.New("track is not publishable over webrtc")

func DefaultConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{
				URLs: []string{"stun:stun.l.google.com:19302"},
			},
		},
	}
}

type Publisher struct {
	mu          sync.Mutex
	pc          *webrtc.PeerConnection
	audioSender *webrtc.RTPSender
	videoSender *webrtc.RTPSender
}

var _ media.Sink = (*Publisher)(nil)

func NewPublisher(cfg webrtc.Configuration) (*Publisher, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, err
	}
	return &Publisher{pc: pc}, nil
}

func (p *Publisher) SetAudio(t media.Track) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	sender, err := p.setTrack(p.audioSender, t)
	if err != nil {
		return err
	}
	p.audioSender = sender
	return nil
}

func (p *Publisher) SetVideo(t media.Track) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	sender, err := p.setTrack(p.videoSender, t)
	if err != nil {
		return err
	}
	p.videoSender = sender
	return nil
}

// setTrack installs, replaces or removes the sender's track in one
// step. ReplaceTrack swaps the source without renegotiation, which is
// exactly the substitution protocol screen share needs.
func (p *Publisher) setTrack(sender *webrtc.RTPSender, t media.Track) (*webrtc.RTPSender, error) {
	if t == nil {
		if sender != nil {
			if err := p.pc.RemoveTrack(sender); err != nil {
				return sender, err
			}
		}
		return nil, nil
	}
	lt, ok := t.(LocalTrack)
	if !ok {
		return sender, ErrNotLocalTrack
	}
	if sender == nil {
		return p.pc.AddTrack(lt.WebRTC())
	}
	if err := sender.ReplaceTrack(lt.WebRTC()); err != nil {
		return sender, err
	}
	log.Debug().Str("module", "rtc").Str("track_id", t.ID()).Str("kind", string(t.Kind())).Msg("track replaced")
	return sender, nil
}

func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.pc.Close(); err != nil {
		log.Error().Err(err).Str("module", "rtc").Msg("close error")
	}
	p.audioSender, p.videoSender = nil, nil
}
