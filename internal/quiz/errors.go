package quiz

import (
	"errors"
	"fmt"
)

var (
	ErrFormat        = errors.New("invalid question block format")
	ErrAnswerCount   = errors.New("question block must list exactly 4 answers")
	ErrUnknownGroup  = errors.New("no answer key entry for question")
	ErrUnknownOption = errors.New("selected value is not an answer letter")
)

type BlockError struct {
	Index int
	Block string
	Err   error
}

func (e *BlockError) Error() string {
	return fmt.Sprintf("question block %d (q%d): %v", e.Index, e.Index+1, e.Err)
}

func (e *BlockError) Unwrap() error {
	return e.Err
}

func (e *BlockError) Kind() string {
	switch {
	case errors.Is(e.Err, ErrAnswerCount):
		return "answer_count"
	case errors.Is(e.Err, ErrFormat):
		return "format"
	default:
		return "unknown"
	}
}
