package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"

	"go.uber.org/zap"

	"quizforge/internal/bank"
	"quizforge/internal/session"
)

var ErrHostMissing = errors.New("quiz mount point not defined")

const (
	mountTemplate = "quiz-mount"
	mountID       = "quiz-container"
)

type sessionStarter interface {
	Start(ctx context.Context, bankName string) (*session.Session, error)
}

type pageData struct {
	Title string
	Body  template.HTML
}

type mountData struct {
	ContainerID string
	SessionID   string
	Markup      template.HTML
}

type quizPageData struct {
	Bank      string
	Questions int
	Rejected  []session.Rejection
	Mount     template.HTML
}

type pages struct {
	tmpl     *template.Template
	sessions sessionStarter
	banks    interface{ List() []bank.Info }
	logger   *zap.Logger
	secure   bool
}

// mountQuiz renders the session markup into the mount point template. The
// markup was produced by html/template and is already escaped.
func mountQuiz(tmpl *template.Template, sess *session.Session) (template.HTML, error) {
	t := tmpl.Lookup(mountTemplate)
	if t == nil {
		return "", fmt.Errorf("%w: %s", ErrHostMissing, mountTemplate)
	}
	var buf bytes.Buffer
	err := t.Execute(&buf, mountData{
		ContainerID: mountID,
		SessionID:   sess.ID.String(),
		Markup:      template.HTML(sess.Markup),
	})
	if err != nil {
		return "", fmt.Errorf("render quiz mount: %w", err)
	}
	return template.HTML(buf.String()), nil
}

func (p *pages) index(w http.ResponseWriter, r *http.Request) {
	p.render(w, http.StatusOK, "Quizforge", "page-index", map[string]any{
		"Banks": p.banks.List(),
	})
}

func (p *pages) quiz(w http.ResponseWriter, r *http.Request, bankName string) {
	sess, err := p.sessions.Start(r.Context(), bankName)
	if err != nil {
		switch {
		case errors.Is(err, bank.ErrBankNotFound), errors.Is(err, session.ErrInvalidInput):
			p.render(w, http.StatusNotFound, "Not found", "page-missing", map[string]any{"Bank": bankName})
		default:
			p.logger.Error("start quiz page", zap.String("bank", bankName), zap.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	mount, err := mountQuiz(p.tmpl, sess)
	if err != nil {
		// The page still renders, without the quiz and without its script.
		p.logger.Error("quiz host missing",
			zap.String("bank", sess.Bank),
			zap.String("session_id", sess.ID.String()),
			zap.Error(err),
		)
		mount = ""
	} else {
		ensureCSRFCookie(w, r, p.secure)
	}

	p.render(w, http.StatusOK, "Quiz: "+sess.Bank, "page-quiz", quizPageData{
		Bank:      sess.Bank,
		Questions: sess.Questions,
		Rejected:  sess.Rejected,
		Mount:     mount,
	})
}

func (p *pages) render(w http.ResponseWriter, status int, title, page string, data any) {
	var body bytes.Buffer
	if err := p.tmpl.ExecuteTemplate(&body, page, data); err != nil {
		p.logger.Error("render page", zap.String("page", page), zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var out bytes.Buffer
	if err := p.tmpl.ExecuteTemplate(&out, "base", pageData{Title: title, Body: template.HTML(body.String())}); err != nil {
		p.logger.Error("render layout", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(out.Bytes())
}
