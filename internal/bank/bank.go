package bank

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

var (
	ErrBankNotFound      = errors.New("question bank not found")
	ErrUnsupportedFormat = errors.New("unsupported question bank format")
	ErrInvalidEntry      = errors.New("invalid question bank entry")
)

// Source yields raw question blocks in display order. Sources do not validate
// blocks; the compiler decides which ones are usable.
type Source interface {
	Load(ctx context.Context) ([]string, error)
}

// Entry is the structured form of one question as written in bank files and
// spreadsheets. The first answer is the correct one.
type Entry struct {
	Question string   `yaml:"question" json:"question"`
	Answers  []string `yaml:"answers" json:"answers"`
}

// Validate rejects entries that would not survive the round trip through
// Block: a question spanning lines, or an answer holding a comma or newline.
func (e Entry) Validate() error {
	q := strings.TrimSpace(e.Question)
	if q == "" {
		return fmt.Errorf("%w: question is required", ErrInvalidEntry)
	}
	if strings.ContainsAny(q, "\r\n") {
		return fmt.Errorf("%w: question %q spans multiple lines", ErrInvalidEntry, q)
	}
	for _, a := range e.Answers {
		if strings.ContainsAny(a, ",\r\n") {
			return fmt.Errorf("%w: answer %q contains a comma or line break", ErrInvalidEntry, strings.TrimSpace(a))
		}
	}
	return nil
}

func (e Entry) Block() string {
	return FormatBlock(e.Question, e.Answers)
}

func FormatBlock(question string, answers []string) string {
	cleaned := make([]string, 0, len(answers))
	for _, a := range answers {
		cleaned = append(cleaned, strings.TrimSpace(a))
	}
	return "question: " + strings.TrimSpace(question) + "\n" + strings.Join(cleaned, ", ")
}

type Info struct {
	Name   string `json:"name"`
	Blocks int    `json:"blocks"`
	Loaded bool   `json:"loaded"`
}

type Registry struct {
	logger *zap.Logger

	mu      sync.RWMutex
	sources map[string]Source
	cache   map[string][]string
}

func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		logger:  logger,
		sources: make(map[string]Source),
		cache:   make(map[string][]string),
	}
}

func (r *Registry) Register(name string, src Source) {
	name = normalizeName(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[name] = src
	delete(r.cache, name)
}

func (r *Registry) Blocks(ctx context.Context, name string) ([]string, error) {
	name = normalizeName(name)

	r.mu.RLock()
	cached, ok := r.cache[name]
	src, known := r.sources[name]
	r.mu.RUnlock()
	if ok {
		return cloneBlocks(cached), nil
	}
	if !known {
		return nil, fmt.Errorf("%w: %s", ErrBankNotFound, name)
	}

	blocks, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load bank %s: %w", name, err)
	}

	r.mu.Lock()
	r.cache[name] = blocks
	r.mu.Unlock()

	r.logger.Info("question bank loaded", zap.String("bank", name), zap.Int("blocks", len(blocks)))
	return cloneBlocks(blocks), nil
}

// Reload drops every cached bank and loads all sources again. Banks that fail
// to load are reported in the returned error and stay unloaded.
func (r *Registry) Reload(ctx context.Context) ([]Info, error) {
	r.mu.Lock()
	r.cache = make(map[string][]string)
	names := r.namesLocked()
	r.mu.Unlock()

	var errs []error
	for _, name := range names {
		if _, err := r.Blocks(ctx, name); err != nil {
			r.logger.Error("question bank reload failed", zap.String("bank", name), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return r.List(), errors.Join(errs...)
}

func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := r.namesLocked()
	out := make([]Info, 0, len(names))
	for _, name := range names {
		blocks, loaded := r.cache[name]
		out = append(out, Info{Name: name, Blocks: len(blocks), Loaded: loaded})
	}
	return out
}

func (r *Registry) namesLocked() []string {
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func cloneBlocks(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
