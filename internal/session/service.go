package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"quizforge/internal/quiz"
)

var ErrInvalidInput = errors.New("invalid input")

type bankProvider interface {
	Blocks(ctx context.Context, name string) ([]string, error)
}

type CompileRecorder interface {
	RecordCompile(bank string, accepted, rejected int)
}

type Service struct {
	banks    bankProvider
	store    Store
	compiler *quiz.Compiler
	ttl      time.Duration
	logger   *zap.Logger
	recorder CompileRecorder
	now      func() time.Time
}

type ServiceConfig struct {
	Banks    bankProvider
	Store    Store
	Compiler *quiz.Compiler
	TTL      time.Duration
	Logger   *zap.Logger
	Recorder CompileRecorder
}

func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	compiler := cfg.Compiler
	if compiler == nil {
		compiler = quiz.NewCompiler(quiz.WithLogger(logger))
	}
	store := cfg.Store
	if store == nil {
		store = NewMemoryStore()
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &Service{
		banks:    cfg.Banks,
		store:    store,
		compiler: compiler,
		ttl:      ttl,
		logger:   logger,
		recorder: cfg.Recorder,
		now:      time.Now,
	}
}

func (s *Service) Start(ctx context.Context, bankName string) (*Session, error) {
	bankName = strings.TrimSpace(bankName)
	if bankName == "" {
		return nil, fmt.Errorf("%w: bank is required", ErrInvalidInput)
	}

	blocks, err := s.banks.Blocks(ctx, bankName)
	if err != nil {
		return nil, err
	}

	res := s.compiler.Compile(blocks)
	now := s.now()
	sess := &Session{
		ID:        uuid.New(),
		Bank:      bankName,
		Markup:    res.Markup,
		AnswerKey: res.AnswerKey,
		Questions: len(res.Questions),
		Rejected:  make([]Rejection, 0, len(res.Rejected)),
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	for _, r := range res.Rejected {
		sess.Rejected = append(sess.Rejected, Rejection{
			Index:  r.Index,
			ID:     quiz.QuestionID(r.Index),
			Kind:   r.Kind(),
			Reason: r.Err.Error(),
		})
	}

	if err := s.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	if s.recorder != nil {
		s.recorder.RecordCompile(bankName, sess.Questions, len(sess.Rejected))
	}

	s.logger.Info("quiz session started",
		zap.String("session_id", sess.ID.String()),
		zap.String("bank", bankName),
		zap.Int("questions", sess.Questions),
		zap.Int("rejected", len(sess.Rejected)),
	)
	return sess, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) Select(ctx context.Context, id uuid.UUID, group, value string) (*quiz.Feedback, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	handle := quiz.NewFeedbackHandler(sess.AnswerKey, s.logger.With(zap.String("session_id", id.String())))
	fb, err := handle(group, value)
	if err != nil {
		return nil, err
	}
	return &fb, nil
}
