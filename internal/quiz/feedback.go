package quiz

import (
	"fmt"

	"go.uber.org/zap"
)

const (
	FeedbackCorrect = "Correct"
	FeedbackWrong   = "Wrong"
)

type Feedback struct {
	QuestionID string            `json:"question_id"`
	Selected   string            `json:"selected"`
	Correct    bool              `json:"correct"`
	Slots      map[string]string `json:"slots"`
}

type FeedbackFunc func(group, value string) (Feedback, error)

func NewFeedbackHandler(key AnswerKey, logger *zap.Logger) FeedbackFunc {
	if logger == nil {
		logger = zap.L()
	}
	key = key.Clone()

	return func(group, value string) (Feedback, error) {
		correct, ok := key.Letter(group)
		if !ok {
			logger.Warn("selection for unknown question", zap.String("group", group), zap.String("value", value))
			return Feedback{}, fmt.Errorf("%w: %s", ErrUnknownGroup, group)
		}
		if !isLetter(value) {
			logger.Warn("selection with unknown option", zap.String("group", group), zap.String("value", value))
			return Feedback{}, fmt.Errorf("%w: %q", ErrUnknownOption, value)
		}

		fb := Feedback{
			QuestionID: group,
			Selected:   value,
			Correct:    value == correct,
			Slots:      make(map[string]string, len(letters)),
		}
		for _, l := range letters {
			fb.Slots[l] = ""
		}
		if fb.Correct {
			fb.Slots[value] = FeedbackCorrect
		} else {
			fb.Slots[value] = FeedbackWrong
		}
		return fb, nil
	}
}

func isLetter(v string) bool {
	for _, l := range letters {
		if l == v {
			return true
		}
	}
	return false
}
