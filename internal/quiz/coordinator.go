// Package quiz runs the room's single ephemeral group quiz: posting,
// answer collection and leaderboard derivation.
package quiz

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/avele/studyroom/internal/channel"
	"github.com/avele/studyroom/internal/domain"
	"github.com/avele/studyroom/internal/store"
)

type Coordinator struct {
	store  store.Store
	broker *channel.Broker

	// serializes quiz read-modify-write per coordinator
	mu sync.Mutex
}

func NewCoordinator(st store.Store, broker *channel.Broker) *Coordinator {
	return &Coordinator{store: st, broker: broker}
}

// Post starts a quiz. A live quiz is rejected with ErrQuizActive;
// callers that want replacement clear first. The answer set starts
// empty.
func (c *Coordinator) Post(ctx context.Context, roomID domain.RoomID, topic, question string, options []string, correctIndex int) (*domain.Quiz, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.store.Quiz(ctx, roomID); err == nil {
		return nil, domain.ErrQuizActive
	} else if !errors.Is(err, domain.ErrNoQuiz) {
		return nil, fmt.Errorf("store.Quiz: %w", err)
	}

	quiz, err := domain.NewQuiz(topic, question, options, correctIndex)
	if err != nil {
		return nil, err
	}
	if err := c.store.SaveQuiz(ctx, roomID, quiz); err != nil {
		return nil, fmt.Errorf("store.SaveQuiz: %w", err)
	}
	c.broker.Publish(roomID, channel.KindQuiz)
	log.Info().Str("module", "quiz").Str("room", string(roomID)).Str("quiz", quiz.ID).Msg("quiz posted")
	return quiz, nil
}

// Submit records the participant's first answer. Repeat submissions
// and submissions with no live quiz are silent no-ops; only an
// out-of-range option is reported back.
func (c *Coordinator) Submit(ctx context.Context, roomID domain.RoomID, id domain.Identity, name string, optionIndex int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	quiz, err := c.store.Quiz(ctx, roomID)
	if err != nil {
		if errors.Is(err, domain.ErrNoQuiz) {
			return nil
		}
		return fmt.Errorf("store.Quiz: %w", err)
	}
	if optionIndex < 0 || optionIndex >= len(quiz.Options) {
		return domain.ErrInvalidOption
	}
	if _, answered := quiz.AnswerOf(id); answered {
		return nil
	}
	quiz.Answers = append(quiz.Answers, domain.Answer{Identity: id, Name: name, OptionIndex: optionIndex})
	if err := c.store.SaveQuiz(ctx, roomID, quiz); err != nil {
		return fmt.Errorf("store.SaveQuiz: %w", err)
	}
	c.broker.Publish(roomID, channel.KindQuiz)
	return nil
}

// Clear removes the quiz unconditionally, returning the room to its
// no-quiz state.
func (c *Coordinator) Clear(ctx context.Context, roomID domain.RoomID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.ClearQuiz(ctx, roomID); err != nil {
		return fmt.Errorf("store.ClearQuiz: %w", err)
	}
	c.broker.Publish(roomID, channel.KindQuiz)
	return nil
}

// Active returns the live quiz, or domain.ErrNoQuiz.
func (c *Coordinator) Active(ctx context.Context, roomID domain.RoomID) (*domain.Quiz, error) {
	return c.store.Quiz(ctx, roomID)
}

// Subscribe delivers the quiz state on every refresh; a nil quiz means
// none is live.
func (c *Coordinator) Subscribe(roomID domain.RoomID, fn func(*domain.Quiz)) func() {
	return c.broker.Subscribe(roomID, channel.KindQuiz, func(s channel.Snapshot) { fn(s.Quiz) })
}
