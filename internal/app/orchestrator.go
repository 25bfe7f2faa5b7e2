package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/avele/studyroom/internal/channel"
	"github.com/avele/studyroom/internal/domain"
	"github.com/avele/studyroom/internal/quiz"
	"github.com/avele/studyroom/internal/room"
	"github.com/avele/studyroom/internal/session"
)

// Orchestrator coordinates membership, channel feeds and the session
// timer for connected clients. Media is deliberately absent: the local
// capture pipeline lives client-side and can fail without touching
// room participation.
type Orchestrator struct {
	Registry *Registry
	Rooms    *room.Manager
	Channels *channel.Broker
	Quiz     *quiz.Coordinator
	Sessions *session.Tracker
}

// JoinRoom joins the client's participant into the room, starts the
// analytics session and subscribes the given feed callbacks. The
// target join is validated first; a rejected join (full room) leaves
// the previous membership and its session untouched.
func (o *Orchestrator) JoinRoom(ctx context.Context, sid SessionID, roomID domain.RoomID, subscribe func() []func()) error {
	p, ok := o.Registry.Participant(sid)
	if !ok {
		return nil
	}
	if err := o.Rooms.Join(ctx, roomID, p); err != nil {
		return err
	}
	if prev, prevOK := o.Registry.RoomOf(sid); prevOK && prev != roomID {
		o.LeaveRoom(ctx, sid)
	}

	analyticsID := o.Sessions.Start("study_room")
	var subs []func()
	if subscribe != nil {
		subs = subscribe()
	}
	prevSubs, prevAnalytics := o.Registry.EnterRoom(sid, roomID, analyticsID, subs)
	cancelAll(prevSubs)
	if prevAnalytics != "" && prevAnalytics != analyticsID {
		o.Sessions.End(prevAnalytics)
	}
	return nil
}

// LeaveRoom is the explicit leave: membership removal (with its system
// notice), feed teardown and session end.
func (o *Orchestrator) LeaveRoom(ctx context.Context, sid SessionID) {
	roomID, analyticsID, subs := o.Registry.LeaveRoom(sid)
	cancelAll(subs)
	if roomID == "" {
		return
	}
	if p, ok := o.Registry.Participant(sid); ok {
		if err := o.Rooms.Leave(ctx, roomID, p.Identity); err != nil {
			log.Warn().Err(err).Str("module", "app").Str("sid", string(sid)).Msg("leave failed")
		}
	}
	if analyticsID != "" {
		o.Sessions.End(analyticsID)
	}
}

// OnDisconnect covers abrupt teardown: same cleanup as an explicit
// leave, then the client entry goes away. End is idempotent, so a
// leave that already ran makes this a no-op.
func (o *Orchestrator) OnDisconnect(sid SessionID) {
	o.LeaveRoom(context.Background(), sid)
	o.Registry.Unbind(sid)
}

func cancelAll(subs []func()) {
	for _, cancel := range subs {
		cancel()
	}
}
