package quiz

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avele/studyroom/internal/channel"
	"github.com/avele/studyroom/internal/domain"
	"github.com/avele/studyroom/internal/store"
)

func newCoordinator(t *testing.T) (*Coordinator, domain.RoomID) {
	t.Helper()
	st := store.NewMemStore()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	broker := channel.New(ctx, st, 20*time.Millisecond)

	room, err := domain.NewRoom("study", "", "", 4,
		domain.Participant{Identity: "a@example.com", Name: "A"})
	require.NoError(t, err)
	require.NoError(t, st.CreateRoom(context.Background(), room))
	return NewCoordinator(st, broker), room.ID
}

func TestPostRejectsWhileActive(t *testing.T) {
	c, roomID := newCoordinator(t)
	ctx := context.Background()

	_, err := c.Post(ctx, roomID, "math", "2+2?", []string{"3", "4"}, 1)
	require.NoError(t, err)

	_, err = c.Post(ctx, roomID, "math", "3+3?", []string{"5", "6"}, 1)
	assert.ErrorIs(t, err, domain.ErrQuizActive)

	// clearing makes room for the next quiz
	require.NoError(t, c.Clear(ctx, roomID))
	_, err = c.Post(ctx, roomID, "math", "3+3?", []string{"5", "6"}, 1)
	assert.NoError(t, err)
}

func TestPostValidatesCorrectIndex(t *testing.T) {
	c, roomID := newCoordinator(t)

	_, err := c.Post(context.Background(), roomID, "math", "2+2?", []string{"3", "4"}, 2)
	assert.ErrorIs(t, err, domain.ErrInvalidOption)
}

func TestSubmitFirstAnswerWins(t *testing.T) {
	c, roomID := newCoordinator(t)
	ctx := context.Background()

	_, err := c.Post(ctx, roomID, "math", "2+2?", []string{"3", "4"}, 1)
	require.NoError(t, err)

	require.NoError(t, c.Submit(ctx, roomID, "a@example.com", "A", 1))
	require.NoError(t, c.Submit(ctx, roomID, "a@example.com", "A", 0)) // no-op

	quiz, err := c.Active(ctx, roomID)
	require.NoError(t, err)
	require.Len(t, quiz.Answers, 1)
	assert.Equal(t, 1, quiz.Answers[0].OptionIndex)
}

func TestSubmitRejectsOutOfRangeOption(t *testing.T) {
	c, roomID := newCoordinator(t)
	ctx := context.Background()

	_, err := c.Post(ctx, roomID, "math", "2+2?", []string{"3", "4"}, 1)
	require.NoError(t, err)

	assert.ErrorIs(t, c.Submit(ctx, roomID, "a@example.com", "A", 2), domain.ErrInvalidOption)
	assert.ErrorIs(t, c.Submit(ctx, roomID, "a@example.com", "A", -1), domain.ErrInvalidOption)

	quiz, err := c.Active(ctx, roomID)
	require.NoError(t, err)
	assert.Empty(t, quiz.Answers)
}

func TestSubmitWithoutQuizIsSilent(t *testing.T) {
	c, roomID := newCoordinator(t)
	assert.NoError(t, c.Submit(context.Background(), roomID, "a@example.com", "A", 0))
}

func TestClearReturnsRoomToNoQuiz(t *testing.T) {
	c, roomID := newCoordinator(t)
	ctx := context.Background()

	_, err := c.Post(ctx, roomID, "math", "2+2?", []string{"3", "4"}, 1)
	require.NoError(t, err)
	require.NoError(t, c.Clear(ctx, roomID))

	_, err = c.Active(ctx, roomID)
	assert.ErrorIs(t, err, domain.ErrNoQuiz)

	// clear with no quiz is still fine
	assert.NoError(t, c.Clear(ctx, roomID))
}

func TestLeaderboardScenario(t *testing.T) {
	// capacity 2, A answers correctly (1), B answers 0: A=1, B=0, ranked [A B]
	quiz := &domain.Quiz{
		ID:           "q1",
		Question:     "2+2?",
		Options:      []string{"3", "4"},
		CorrectIndex: 1,
		Answers: []domain.Answer{
			{Identity: "a@example.com", Name: "A", OptionIndex: 1},
			{Identity: "b@example.com", Name: "B", OptionIndex: 0},
		},
	}
	roster := []domain.Participant{
		{Identity: "a@example.com", Name: "A"},
		{Identity: "b@example.com", Name: "B"},
	}

	board := Leaderboard(quiz, roster)
	require.Len(t, board, 2)
	assert.Equal(t, domain.Identity("a@example.com"), board[0].Participant.Identity)
	assert.Equal(t, 1, board[0].Score)
	assert.Equal(t, domain.Identity("b@example.com"), board[1].Participant.Identity)
	assert.Equal(t, 0, board[1].Score)
}

func TestLeaderboardIncludesNonAnswerers(t *testing.T) {
	quiz := &domain.Quiz{
		ID:           "q1",
		Options:      []string{"x", "y"},
		CorrectIndex: 0,
		Answers: []domain.Answer{
			{Identity: "b@example.com", Name: "B", OptionIndex: 0},
		},
	}
	roster := []domain.Participant{
		{Identity: "a@example.com", Name: "A"},
		{Identity: "b@example.com", Name: "B"},
		{Identity: "c@example.com", Name: "C"},
	}

	board := Leaderboard(quiz, roster)
	require.Len(t, board, 3)

	// B scored; A and C keep roster order on the tie at zero
	assert.Equal(t, domain.Identity("b@example.com"), board[0].Participant.Identity)
	assert.True(t, board[0].Answered)

	assert.Equal(t, domain.Identity("a@example.com"), board[1].Participant.Identity)
	assert.False(t, board[1].Answered)
	assert.Zero(t, board[1].Score)
	assert.Equal(t, -1, board[1].OptionIndex)

	assert.Equal(t, domain.Identity("c@example.com"), board[2].Participant.Identity)
}

func TestAllAnsweredIsInformational(t *testing.T) {
	c, roomID := newCoordinator(t)
	ctx := context.Background()

	_, err := c.Post(ctx, roomID, "math", "2+2?", []string{"3", "4"}, 1)
	require.NoError(t, err)
	require.NoError(t, c.Submit(ctx, roomID, "a@example.com", "A", 1))

	quiz, err := c.Active(ctx, roomID)
	require.NoError(t, err)
	assert.True(t, quiz.AllAnswered(1))
	assert.False(t, quiz.AllAnswered(2))

	// a late joiner can still answer after all-answered fired
	require.NoError(t, c.Submit(ctx, roomID, "late@example.com", "L", 0))
	quiz, err = c.Active(ctx, roomID)
	require.NoError(t, err)
	assert.Len(t, quiz.Answers, 2)
}
