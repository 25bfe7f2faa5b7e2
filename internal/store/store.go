// Package store owns every piece of shared room state. Participants
// never mutate entities directly; managers submit writes here and
// subscribers read snapshots back through the channel broker.
package store

import (
	"context"

	"github.com/avele/studyroom/internal/domain"
)

// Store is the room/channel persistence contract. Implementations must
// hand out copies: callers own what they receive.
type Store interface {
	CreateRoom(ctx context.Context, room *domain.Room) error
	Room(ctx context.Context, id domain.RoomID) (*domain.Room, error)
	SaveRoom(ctx context.Context, room *domain.Room) error
	DeleteRoom(ctx context.Context, id domain.RoomID) error
	Rooms(ctx context.Context) ([]*domain.Room, error)

	// AppendMessage assigns the room's next monotonic sequence number
	// and returns the stored message.
	AppendMessage(ctx context.Context, id domain.RoomID, msg domain.ChatMessage) (domain.ChatMessage, error)
	Messages(ctx context.Context, id domain.RoomID) ([]domain.ChatMessage, error)

	SaveNote(ctx context.Context, id domain.RoomID, text string) error
	Note(ctx context.Context, id domain.RoomID) (domain.SharedNote, error)

	// PutResource replaces any entry with the same file name, keeping
	// the name a unique key within the room.
	PutResource(ctx context.Context, id domain.RoomID, res domain.Resource) error
	DeleteResource(ctx context.Context, id domain.RoomID, fileName string) error
	Resources(ctx context.Context, id domain.RoomID) ([]domain.Resource, error)

	SaveQuiz(ctx context.Context, id domain.RoomID, quiz *domain.Quiz) error
	// Quiz returns domain.ErrNoQuiz when the room has no live quiz.
	Quiz(ctx context.Context, id domain.RoomID) (*domain.Quiz, error)
	ClearQuiz(ctx context.Context, id domain.RoomID) error
}
