package quiz

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

const (
	questionPrefix     = "question:"
	answersPerQuestion = 4
)

var letters = [answersPerQuestion]string{"a", "b", "c", "d"}

type Option struct {
	Letter    string `json:"letter"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

type Question struct {
	ID      string   `json:"id"`
	Number  int      `json:"number"`
	Text    string   `json:"text"`
	Options []Option `json:"options"`
}

type AnswerKey map[string]string

func (k AnswerKey) Letter(questionID string) (string, bool) {
	letter, ok := k[questionID]
	return letter, ok
}

func (k AnswerKey) Clone() AnswerKey {
	out := make(AnswerKey, len(k))
	for id, letter := range k {
		out[id] = letter
	}
	return out
}

type Result struct {
	Markup    string
	AnswerKey AnswerKey
	Questions []Question
	Rejected  []*BlockError
}

type Compiler struct {
	logger   *zap.Logger
	shuffler *Shuffler
}

type CompilerOption func(*Compiler)

func WithLogger(logger *zap.Logger) CompilerOption {
	return func(c *Compiler) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithShuffler(s *Shuffler) CompilerOption {
	return func(c *Compiler) {
		if s != nil {
			c.shuffler = s
		}
	}
}

func NewCompiler(opts ...CompilerOption) *Compiler {
	c := &Compiler{
		logger:   zap.L(),
		shuffler: defaultShuffler,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func Compile(blocks []string) Result {
	return NewCompiler().Compile(blocks)
}

// Compile turns raw question blocks into markup and an answer key. Question
// ids come from the input position, so a rejected block leaves a gap.
func (c *Compiler) Compile(blocks []string) Result {
	res := Result{AnswerKey: make(AnswerKey, len(blocks))}
	var sb strings.Builder

	for i, block := range blocks {
		q, err := c.compileBlock(i, block)
		if err != nil {
			be := &BlockError{Index: i, Block: block, Err: err}
			res.Rejected = append(res.Rejected, be)
			c.logger.Warn("question block skipped",
				zap.Int("index", i),
				zap.String("kind", be.Kind()),
				zap.String("block", block),
				zap.Error(err),
			)
			continue
		}

		for _, opt := range q.Options {
			if opt.IsCorrect {
				res.AnswerKey[q.ID] = opt.Letter
				break
			}
		}

		if err := renderQuestion(&sb, q); err != nil {
			c.logger.Error("render question", zap.String("question_id", q.ID), zap.Error(err))
		}
		res.Questions = append(res.Questions, q)
	}

	res.Markup = sb.String()
	return res
}

func (c *Compiler) compileBlock(index int, block string) (Question, error) {
	text, answers, err := ParseBlock(block)
	if err != nil {
		return Question{}, err
	}

	correct := answers[0]
	options := make([]Option, len(answers))
	for i, a := range answers {
		// Tagging is by text, so a duplicate of the correct answer is tagged too.
		options[i] = Option{Text: a, IsCorrect: a == correct}
	}

	c.shuffler.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})
	for i := range options {
		options[i].Letter = letters[i]
	}

	return Question{
		ID:      QuestionID(index),
		Number:  index + 1,
		Text:    text,
		Options: options,
	}, nil
}

func QuestionID(index int) string {
	return fmt.Sprintf("q%d", index+1)
}

func ParseBlock(block string) (string, []string, error) {
	lines := strings.Split(strings.TrimSpace(block), "\n")
	if len(lines) != 2 {
		return "", nil, fmt.Errorf("%w: expected 2 lines, got %d", ErrFormat, len(lines))
	}
	head := strings.TrimSpace(lines[0])
	tail := strings.TrimSpace(lines[1])
	if head == "" || tail == "" {
		return "", nil, fmt.Errorf("%w: empty line", ErrFormat)
	}
	if !strings.HasPrefix(strings.ToLower(head), questionPrefix) {
		return "", nil, fmt.Errorf("%w: first line must start with %q", ErrFormat, questionPrefix)
	}

	text := strings.TrimSpace(head[strings.IndexByte(head, ':')+1:])

	parts := strings.Split(tail, ",")
	if len(parts) != answersPerQuestion {
		return "", nil, fmt.Errorf("%w: got %d", ErrAnswerCount, len(parts))
	}
	answers := make([]string, len(parts))
	for i, p := range parts {
		answers[i] = strings.TrimSpace(p)
	}
	return text, answers, nil
}
