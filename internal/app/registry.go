// Package app wires the engine together: the registry of connected
// clients and the orchestrator that drives join/leave flows.
package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/avele/studyroom/internal/domain"
)

// SessionID is the client connection token (cookie-scoped), distinct
// from the analytics correlation id.
type SessionID string

// Frame is a raw outbound payload.
type Frame []byte

// SignalConn abstracts the client's messaging transport. Owned by the
// adapter; the adapter must Close() it.
type SignalConn interface {
	TrySend(Frame) error
	Close()
}

type clientEntry struct {
	Participant domain.Participant
	RoomID      domain.RoomID
	Conn        SignalConn
	Cancel      context.CancelFunc

	// AnalyticsID survives here (not in a handler-local variable) so
	// abrupt teardown can still end the session exactly once.
	AnalyticsID string

	// feed cancels for the room the client currently watches
	subs []func()
}

// Registry tracks connected clients by session id.
type Registry struct {
	mu      sync.RWMutex
	clients map[SessionID]*clientEntry
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[SessionID]*clientEntry)}
}

func (r *Registry) Bind(sid SessionID, p domain.Participant, conn SignalConn, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[sid] = &clientEntry{Participant: p, Conn: conn, Cancel: cancel}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("identity", string(p.Identity)).Msg("bound client")
}

func (r *Registry) Participant(sid SessionID) (domain.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.clients[sid]; ok {
		return e.Participant, true
	}
	return domain.Participant{}, false
}

func (r *Registry) RoomOf(sid SessionID) (domain.RoomID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.clients[sid]
	if !ok || e.RoomID == "" {
		return "", false
	}
	return e.RoomID, true
}

// EnterRoom records the client's room, analytics id and feed cancels,
// returning the cancels of any room it was in before.
func (r *Registry) EnterRoom(sid SessionID, roomID domain.RoomID, analyticsID string, subs []func()) (prevSubs []func(), prevAnalytics string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.clients[sid]
	if !ok {
		return subs, analyticsID // caller must clean up what it made
	}
	prevSubs, prevAnalytics = e.subs, e.AnalyticsID
	e.RoomID = roomID
	e.AnalyticsID = analyticsID
	e.subs = subs
	return prevSubs, prevAnalytics
}

// LeaveRoom clears the client's room association and hands back the
// teardown handles.
func (r *Registry) LeaveRoom(sid SessionID) (roomID domain.RoomID, analyticsID string, subs []func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.clients[sid]
	if !ok {
		return "", "", nil
	}
	roomID, analyticsID, subs = e.RoomID, e.AnalyticsID, e.subs
	e.RoomID = ""
	e.AnalyticsID = ""
	e.subs = nil
	return roomID, analyticsID, subs
}

func (r *Registry) Unbind(sid SessionID) {
	r.mu.Lock()
	e, ok := r.clients[sid]
	if ok {
		delete(r.clients, sid)
	}
	r.mu.Unlock()
	if ok && e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unbound client")
}

func (r *Registry) Conn(sid SessionID) (SignalConn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.clients[sid]; ok && e.Conn != nil {
		return e.Conn, true
	}
	return nil, false
}
