package signal

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/avele/studyroom/internal/app"
	"github.com/avele/studyroom/internal/domain"
)

func (ctl *Controller) handleQuizPost(ctx context.Context, sid app.SessionID, conn *WsConn, data []byte) {
	type payload struct {
		Type         string   `json:"type"`
		Topic        string   `json:"topic"`
		Question     string   `json:"question"`
		Options      []string `json:"options"`
		CorrectIndex int      `json:"correct_index"`
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
	_, err := ctl.Orch.Quiz.Post(ctx, roomID, p.Topic, p.Question, p.Options, p.CorrectIndex)
	switch {
	case errors.Is(err, domain.ErrQuizActive):
		ctl.sendError(conn, "quiz_already_active")
	case errors.Is(err, domain.ErrInvalidOption):
		ctl.sendError(conn, "invalid_option")
	case err != nil:
		log.Warn().Err(err).Str("module", "signal").Msg("quiz post failed")
		ctl.sendError(conn, "sync_failure")
	}
}

func (ctl *Controller) handleQuizAnswer(ctx context.Context, sid app.SessionID, conn *WsConn, data []byte) {
	type payload struct {
		Type        string `json:"type"`
		OptionIndex int    `json:"option_index"`
	}
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(conn, "bad_payload")
		return
	}
	roomID, sender, ok := ctl.roomAndSender(sid)
	if !ok {
		ctl.sendError(conn, "not_in_room")
		return
	}
	err := ctl.Orch.Quiz.Submit(ctx, roomID, sender.Identity, sender.Name, p.OptionIndex)
	if errors.Is(err, domain.ErrInvalidOption) {
		// the only answer rejection that is reported; the rest are
		// idempotent no-ops
		ctl.sendError(conn, "invalid_option")
	} else if err != nil {
		ctl.sendError(conn, "sync_failure")
	}
}

func (ctl *Controller) handleQuizClear(ctx context.Context, sid app.SessionID, conn *WsConn) {
	roomID, _, ok := ctl.roomAndSender(sid)
	if !ok {
		ctl.sendError(conn, "not_in_room")
		return
	}
	if err := ctl.Orch.Quiz.Clear(ctx, roomID); err != nil {
		ctl.sendError(conn, "sync_failure")
	}
}
