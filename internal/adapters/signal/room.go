package signal

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/avele/studyroom/internal/app"
	"github.com/avele/studyroom/internal/domain"
	"github.com/avele/studyroom/internal/quiz"
)

func (ctl *Controller) handleCreateRoom(ctx context.Context, sid app.SessionID, conn *WsConn, data []byte) {
	type payload struct {
		Type      string `json:"type"`
		Name      string `json:"name"`
		Topic     string `json:"topic"`
		Technique string `json:"technique"`
		MaxUsers  int    `json:"max_users"`
	}
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad create_room payload")
		ctl.sendError(conn, "bad_payload")
		return
	}
	creator, ok := ctl.Orch.Registry.Participant(sid)
	if !ok {
		return
	}
	room, err := ctl.Orch.Rooms.Create(ctx, domain.RoomName(p.Name), p.Topic, p.Technique, p.MaxUsers, creator)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCapacity) {
			ctl.sendError(conn, "invalid_capacity")
			return
		}
		ctl.sendError(conn, "create_failed")
		return
	}
	// the creator is already on the roster; wire up its feeds
	if err := ctl.Orch.JoinRoom(ctx, sid, room.ID, func() []func() {
		return ctl.subscribeFeeds(sid, room.ID, conn)
	}); err != nil {
		ctl.sendError(conn, "join_failed")
		return
	}
	ctl.sendJSON(conn, struct {
		Type string       `json:"type"`
		Room *domain.Room `json:"room"`
	}{"room_created", room})
}

func (ctl *Controller) handleJoin(ctx context.Context, sid app.SessionID, conn *WsConn, data []byte) {
	type payload struct {
		Type string `json:"type"`
		Room string `json:"room"`
	}
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendError(conn, "bad_payload")
		return
	}
	roomID := domain.RoomID(p.Room)

	err := ctl.Orch.JoinRoom(ctx, sid, roomID, func() []func() {
		return ctl.subscribeFeeds(sid, roomID, conn)
	})
	if err != nil {
		if errors.Is(err, domain.ErrRoomFull) {
			ctl.sendError(conn, "room_full")
			return
		}
		ctl.sendError(conn, "join_failed")
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("room", p.Room).Msg("join")
}

func (ctl *Controller) handleLeave(ctx context.Context, sid app.SessionID, conn *WsConn) {
	log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("leave")
	ctl.Orch.LeaveRoom(ctx, sid)
	ctl.sendJSON(conn, map[string]any{"type": "left"})
}

// subscribeFeeds pushes every channel's snapshots to the client. Each
// cancel lands in the registry entry so leave and disconnect can stop
// the refresh activity immediately.
func (ctl *Controller) subscribeFeeds(sid app.SessionID, roomID domain.RoomID, conn *WsConn) []func() {
	b := ctl.Orch.Channels
	return []func(){
		ctl.Orch.Rooms.Subscribe(roomID, func(room *domain.Room) {
			ctl.sendJSON(conn, struct {
				Type string       `json:"type"`
				Room *domain.Room `json:"room"`
			}{"room_state", room})
		}),
		b.SubscribeMessages(roomID, func(msgs []domain.ChatMessage) {
			ctl.sendJSON(conn, struct {
				Type     string               `json:"type"`
				Messages []domain.ChatMessage `json:"messages"`
			}{"chat_state", msgs})
		}),
		b.SubscribeNotes(roomID, func(note domain.SharedNote) {
			ctl.sendJSON(conn, struct {
				Type string            `json:"type"`
				Note domain.SharedNote `json:"note"`
			}{"notes_state", note})
		}),
		b.SubscribeResources(roomID, func(res []domain.Resource) {
			ctl.sendJSON(conn, struct {
				Type      string            `json:"type"`
				Resources []domain.Resource `json:"resources"`
			}{"resources_state", res})
		}),
		ctl.Orch.Quiz.Subscribe(roomID, func(q *domain.Quiz) {
			ctl.sendQuizState(conn, roomID, q)
		}),
	}
}

// sendQuizState attaches the leaderboard once everyone on the current
// roster has answered; the quiz itself stays viewable either way.
func (ctl *Controller) sendQuizState(conn *WsConn, roomID domain.RoomID, q *domain.Quiz) {
	resp := struct {
		Type        string          `json:"type"`
		Quiz        *domain.Quiz    `json:"quiz"`
		AllAnswered bool            `json:"all_answered"`
		Leaderboard []quiz.Standing `json:"leaderboard,omitempty"`
	}{Type: "quiz_state", Quiz: q}

	if q != nil {
		if room, err := ctl.Orch.Rooms.Snapshot(context.Background(), roomID); err == nil {
			if q.AllAnswered(len(room.Participants)) {
				resp.AllAnswered = true
				resp.Leaderboard = quiz.Leaderboard(q, room.Participants)
			}
		}
	}
	ctl.sendJSON(conn, resp)
}
