package quiz

import (
	"sort"

	"github.com/avele/studyroom/internal/domain"
)

// Standing is one leaderboard row. Participants who never answered
// are still ranked, with Answered false and score 0.
type Standing struct {
	Participant domain.Participant `json:"participant"`
	Score       int                `json:"score"`
	Answered    bool               `json:"answered"`
	OptionIndex int                `json:"option_index"`
}

// Leaderboard derives standings for the current roster: score 1 iff
// the recorded option equals the correct index. Sort is stable, score
// descending, so ties keep roster (join) order.
func Leaderboard(quiz *domain.Quiz, roster []domain.Participant) []Standing {
	out := make([]Standing, 0, len(roster))
	for _, p := range roster {
		row := Standing{Participant: p, OptionIndex: -1}
		if answer, ok := quiz.AnswerOf(p.Identity); ok {
			row.Answered = true
			row.OptionIndex = answer.OptionIndex
			if answer.OptionIndex == quiz.CorrectIndex {
				row.Score = 1
			}
		}
		out = append(out, row)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
