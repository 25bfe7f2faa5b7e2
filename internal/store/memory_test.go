package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avele/studyroom/internal/domain"
)

func newTestRoom(t *testing.T) *domain.Room {
	t.Helper()
	room, err := domain.NewRoom("algebra", "math", "pomodoro", 4,
		domain.Participant{Identity: "a@example.com", Name: "Ann"})
	require.NoError(t, err)
	return room
}

func TestMemStoreRoomLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	room := newTestRoom(t)

	require.NoError(t, s.CreateRoom(ctx, room))

	got, err := s.Room(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, room.ID, got.ID)
	assert.Len(t, got.Participants, 1)

	// mutating the returned copy must not leak into the store
	got.Participants = append(got.Participants, domain.Participant{Identity: "x@example.com"})
	again, err := s.Room(ctx, room.ID)
	require.NoError(t, err)
	assert.Len(t, again.Participants, 1)

	require.NoError(t, s.DeleteRoom(ctx, room.ID))
	_, err = s.Room(ctx, room.ID)
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)

	assert.ErrorIs(t, s.DeleteRoom(ctx, room.ID), domain.ErrRoomNotFound)
}

func TestMemStoreChatSequenceMonotonic(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	room := newTestRoom(t)
	require.NoError(t, s.CreateRoom(ctx, room))

	first, err := s.AppendMessage(ctx, room.ID, domain.NewChatMessage("a@example.com", "hi"))
	require.NoError(t, err)
	second, err := s.AppendMessage(ctx, room.ID, domain.NewChatMessage("a@example.com", "again"))
	require.NoError(t, err)

	assert.Equal(t, int64(1), first.Seq)
	assert.Equal(t, int64(2), second.Seq)

	msgs, err := s.Messages(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, []string{"hi"}, msgs[0].Parts)
	assert.True(t, msgs[0].Seq < msgs[1].Seq)
}

func TestMemStoreNotesLastWriteWins(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	room := newTestRoom(t)
	require.NoError(t, s.CreateRoom(ctx, room))

	require.NoError(t, s.SaveNote(ctx, room.ID, "draft one"))
	require.NoError(t, s.SaveNote(ctx, room.ID, "draft two"))

	note, err := s.Note(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, "draft two", note.Text)
	assert.False(t, note.UpdatedAt.IsZero())
}

func TestMemStoreResourceNameIsUniqueKey(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	room := newTestRoom(t)
	require.NoError(t, s.CreateRoom(ctx, room))

	require.NoError(t, s.PutResource(ctx, room.ID, domain.Resource{FileName: "notes.pdf", Location: "/files/1", Uploader: "Ann"}))
	require.NoError(t, s.PutResource(ctx, room.ID, domain.Resource{FileName: "notes.pdf", Location: "/files/2", Uploader: "Bob"}))

	shelf, err := s.Resources(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, shelf, 1, "re-upload under the same name overwrites")
	assert.Equal(t, "/files/2", shelf[0].Location)

	require.NoError(t, s.DeleteResource(ctx, room.ID, "notes.pdf"))
	shelf, err = s.Resources(ctx, room.ID)
	require.NoError(t, err)
	assert.Empty(t, shelf)

	// deleting an absent name removes nothing and does not error
	require.NoError(t, s.DeleteResource(ctx, room.ID, "missing.pdf"))
}

func TestMemStoreQuizLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	room := newTestRoom(t)
	require.NoError(t, s.CreateRoom(ctx, room))

	_, err := s.Quiz(ctx, room.ID)
	assert.ErrorIs(t, err, domain.ErrNoQuiz)

	quiz, err := domain.NewQuiz("math", "2+2?", []string{"3", "4"}, 1)
	require.NoError(t, err)
	require.NoError(t, s.SaveQuiz(ctx, room.ID, quiz))

	got, err := s.Quiz(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, quiz.ID, got.ID)

	require.NoError(t, s.ClearQuiz(ctx, room.ID))
	_, err = s.Quiz(ctx, room.ID)
	assert.ErrorIs(t, err, domain.ErrNoQuiz)
}
