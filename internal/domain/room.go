// Package domain contains entities without logic, just meta-data.
package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	MaxRoomNameLen = 64
	MinCapacity    = 2
)

var (
	ErrRoomNameEmpty   = errors.New("room name empty")
	ErrRoomNameTooLong = errors.New("room name too long")
)

type RoomID string

type RoomName string

// Identity is the stable participant key supplied by the identity
// provider, an email-like string unique within a room.
type Identity string

type Participant struct {
	Identity Identity `json:"identity"`
	Name     string   `json:"name"`
}

// Room is a bounded collaborative session. The roster keeps join order;
// leaderboard tie-breaks depend on it.
type Room struct {
	ID           RoomID        `json:"id"`
	Name         RoomName      `json:"name"`
	Topic        string        `json:"topic,omitempty"`
	Technique    string        `json:"technique,omitempty"`
	MaxUsers     int           `json:"max_users"`
	Creator      Identity      `json:"creator"`
	Participants []Participant `json:"participants"`
	CreatedAt    time.Time     `json:"created_at"`
}

// NewRoom validates inputs and auto-adds the creator as the sole
// initial participant.
func NewRoom(name RoomName, topic, technique string, maxUsers int, creator Participant) (*Room, error) {
	if len(name) == 0 {
		return nil, ErrRoomNameEmpty
	}
	if len(name) > MaxRoomNameLen {
		return nil, ErrRoomNameTooLong
	}
	if maxUsers < MinCapacity {
		return nil, ErrInvalidCapacity
	}
	return &Room{
		ID:           RoomID(uuid.NewString()),
		Name:         name,
		Topic:        topic,
		Technique:    technique,
		MaxUsers:     maxUsers,
		Creator:      creator.Identity,
		Participants: []Participant{creator},
		CreatedAt:    time.Now(),
	}, nil
}

func (r *Room) HasParticipant(id Identity) bool {
	for _, p := range r.Participants {
		if p.Identity == id {
			return true
		}
	}
	return false
}

func (r *Room) IsFull() bool {
	return len(r.Participants) >= r.MaxUsers
}

// RemoveParticipant removes at most one roster entry and reports
// whether it was present.
func (r *Room) RemoveParticipant(id Identity) (Participant, bool) {
	for i, p := range r.Participants {
		if p.Identity == id {
			r.Participants = append(r.Participants[:i], r.Participants[i+1:]...)
			return p, true
		}
	}
	return Participant{}, false
}

func (r *Room) Clone() *Room {
	out := *r
	out.Participants = make([]Participant, len(r.Participants))
	copy(out.Participants, r.Participants)
	return &out
}
