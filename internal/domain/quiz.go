package domain

import "github.com/google/uuid"

// Answer records one participant's pick. A participant has at most one
// answer per quiz; the first submission wins.
type Answer struct {
	Identity    Identity `json:"identity"`
	Name        string   `json:"name"`
	OptionIndex int      `json:"option_index"`
}

// Quiz is the room's single ephemeral group quiz. It exists until
// explicitly cleared.
type Quiz struct {
	ID           string   `json:"id"`
	Topic        string   `json:"topic"`
	Question     string   `json:"question"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correct_index"`
	Answers      []Answer `json:"answers"`
}

func NewQuiz(topic, question string, options []string, correctIndex int) (*Quiz, error) {
	if len(options) < 2 || correctIndex < 0 || correctIndex >= len(options) {
		return nil, ErrInvalidOption
	}
	return &Quiz{
		ID:           uuid.NewString(),
		Topic:        topic,
		Question:     question,
		Options:      options,
		CorrectIndex: correctIndex,
	}, nil
}

func (q *Quiz) AnswerOf(id Identity) (Answer, bool) {
	for _, a := range q.Answers {
		if a.Identity == id {
			return a, true
		}
	}
	return Answer{}, false
}

// AllAnswered is informational only: it never blocks late joiners from
// viewing or answering the quiz.
func (q *Quiz) AllAnswered(rosterSize int) bool {
	return rosterSize > 0 && len(q.Answers) >= rosterSize
}

func (q *Quiz) Clone() *Quiz {
	out := *q
	out.Options = append([]string(nil), q.Options...)
	out.Answers = append([]Answer(nil), q.Answers...)
	return &out
}
