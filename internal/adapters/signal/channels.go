package signal

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/avele/studyroom/internal/app"
	"github.com/avele/studyroom/internal/domain"
)

func (ctl *Controller) handleChat(ctx context.Context, sid app.SessionID, conn *WsConn, data []byte) {
	type payload struct {
		Type  string   `json:"type"`
		Parts []string `json:"parts"`
	}
	var p payload
	if err := json.Unmarshal(data, &p); err != nil || len(p.Parts) == 0 {
		ctl.sendError(conn, "bad_payload")
		return
	}
	roomID, sender, ok := ctl.roomAndSender(sid)
	if !ok {
		ctl.sendError(conn, "not_in_room")
		return
	}
	if !ctl.limiter.Allow(sender.Identity) {
		ctl.sendError(conn, "rate_limited")
		return
	}
	if _, err := ctl.Orch.Channels.SendMessage(ctx, roomID, domain.NewChatMessage(sender.Identity, p.Parts...)); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("chat send failed")
		ctl.sendError(conn, "sync_failure")
	}
}

func (ctl *Controller) handleNotes(ctx context.Context, sid app.SessionID, conn *WsConn, data []byte) {
	type payload struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(conn, "bad_payload")
		return
	}
	roomID, _, ok := ctl.roomAndSender(sid)
	if !ok {
		ctl.sendError(conn, "not_in_room")
		return
	}
	if err := ctl.Orch.Channels.SaveNotes(ctx, roomID, p.Text); err != nil {
		ctl.sendError(conn, "sync_failure")
	}
}

func (ctl *Controller) handleResourceAdd(ctx context.Context, sid app.SessionID, conn *WsConn, data []byte) {
	type payload struct {
		Type     string `json:"type"`
		FileName string `json:"file_name"`
		Location string `json:"location"`
	}
	var p payload
	if err := json.Unmarshal(data, &p); err != nil || p.FileName == "" {
		ctl.sendError(conn, "bad_payload")
		return
	}
	roomID, sender, ok := ctl.roomAndSender(sid)
	if !ok {
		ctl.sendError(conn, "not_in_room")
		return
	}
	res := domain.Resource{FileName: p.FileName, Location: p.Location, Uploader: sender.Name}
	if err := ctl.Orch.Channels.UploadResource(ctx, roomID, res); err != nil {
		ctl.sendError(conn, "sync_failure")
	}
}

func (ctl *Controller) handleResourceRemove(ctx context.Context, sid app.SessionID, conn *WsConn, data []byte) {
	type payload struct {
		Type     string `json:"type"`
		FileName string `json:"file_name"`
	}
	var p payload
	if err := json.Unmarshal(data, &p); err != nil || p.FileName == "" {
		ctl.sendError(conn, "bad_payload")
		return
	}
	roomID, _, ok := ctl.roomAndSender(sid)
	if !ok {
		ctl.sendError(conn, "not_in_room")
		return
	}
	if err := ctl.Orch.Channels.DeleteResource(ctx, roomID, p.FileName); err != nil {
		ctl.sendError(conn, "sync_failure")
	}
}

func (ctl *Controller) roomAndSender(sid app.SessionID) (domain.RoomID, domain.Participant, bool) {
	roomID, ok := ctl.Orch.Registry.RoomOf(sid)
	if !ok {
		return "", domain.Participant{}, false
	}
	p, ok := ctl.Orch.Registry.Participant(sid)
	if !ok {
		return "", domain.Participant{}, false
	}
	return roomID, p, true
}
