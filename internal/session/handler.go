package session

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"quizforge/internal/app/apiresp"
	"quizforge/internal/bank"
	"quizforge/internal/quiz"
)

type Handler struct {
	svc     sessionService
	logger  *zap.Logger
	limiter Limiter
}

type Limiter interface {
	Allow(key string) bool
}

type HandlerOption func(*Handler)

// WithStreamLimiter caps WebSocket selections per client and session.
func WithStreamLimiter(l Limiter) HandlerOption {
	return func(h *Handler) { h.limiter = l }
}

type sessionService interface {
	Start(ctx context.Context, bankName string) (*Session, error)
	Get(ctx context.Context, id uuid.UUID) (*Session, error)
	Select(ctx context.Context, id uuid.UUID, group, value string) (*quiz.Feedback, error)
}

type startSessionRequest struct {
	Bank string `json:"bank"`
}

type selectRequest struct {
	Group string `json:"group"`
	Value string `json:"value"`
}

type streamReply struct {
	OK       bool           `json:"ok"`
	Feedback *quiz.Feedback `json:"feedback,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// View is the public shape of a session; it never carries the answer key.
type View struct {
	ID        uuid.UUID   `json:"id"`
	Bank      string      `json:"bank"`
	Markup    string      `json:"markup"`
	Questions int         `json:"questions"`
	Rejected  []Rejection `json:"rejected"`
	CreatedAt time.Time   `json:"created_at"`
	ExpiresAt time.Time   `json:"expires_at"`
}

func NewView(s *Session) View {
	return View{
		ID:        s.ID,
		Bank:      s.Bank,
		Markup:    s.Markup,
		Questions: s.Questions,
		Rejected:  s.Rejected,
		CreatedAt: s.CreatedAt,
		ExpiresAt: s.ExpiresAt,
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

func NewHandler(svc sessionService, logger *zap.Logger, opts ...HandlerOption) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{svc: svc, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiresp.Write(w, r, http.StatusBadRequest, apiresp.Response{OK: false, Error: "invalid request body"})
		return
	}

	sess, err := h.svc.Start(r.Context(), req.Bank)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			apiresp.Write(w, r, http.StatusBadRequest, apiresp.Response{OK: false, Error: "bank is required"})
		case errors.Is(err, bank.ErrBankNotFound):
			apiresp.Write(w, r, http.StatusNotFound, apiresp.Response{OK: false, Error: "question bank not found"})
		default:
			h.logger.Error("start session", zap.String("bank", req.Bank), zap.Error(err))
			apiresp.Write(w, r, http.StatusInternalServerError, apiresp.Response{OK: false, Error: "internal error"})
		}
		return
	}

	apiresp.Write(w, r, http.StatusCreated, apiresp.Response{OK: true, Data: NewView(sess)})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionIDParam(w, r)
	if !ok {
		return
	}

	sess, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeLookupError(w, r, err)
		return
	}
	apiresp.Write(w, r, http.StatusOK, apiresp.Response{OK: true, Data: NewView(sess)})
}

func (h *Handler) Select(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionIDParam(w, r)
	if !ok {
		return
	}

	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apiresp.Write(w, r, http.StatusBadRequest, apiresp.Response{OK: false, Error: "invalid request body"})
		return
	}

	fb, err := h.svc.Select(r.Context(), id, req.Group, req.Value)
	if err != nil {
		switch {
		case errors.Is(err, quiz.ErrUnknownGroup), errors.Is(err, quiz.ErrUnknownOption):
			apiresp.Write(w, r, http.StatusUnprocessableEntity, apiresp.Response{OK: false, Error: err.Error()})
		default:
			h.writeLookupError(w, r, err)
		}
		return
	}
	apiresp.Write(w, r, http.StatusOK, apiresp.Response{OK: true, Data: fb})
}

func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionIDParam(w, r)
	if !ok {
		return
	}
	if _, err := h.svc.Get(r.Context(), id); err != nil {
		h.writeLookupError(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.String("session_id", id.String()), zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	key := clientHost(r) + "|ws|" + id.String()
	for {
		var req selectRequest
		if err := conn.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("websocket read ended", zap.String("session_id", id.String()), zap.Error(err))
			}
			return
		}

		reply := streamReply{OK: true}
		if h.limiter != nil && !h.limiter.Allow(key) {
			reply = streamReply{OK: false, Error: "rate limit exceeded"}
		} else if fb, err := h.svc.Select(r.Context(), id, req.Group, req.Value); err != nil {
			reply = streamReply{OK: false, Error: err.Error()}
		} else {
			reply.Feedback = fb
		}
		if err := conn.WriteJSON(reply); err != nil {
			h.logger.Debug("websocket write failed", zap.String("session_id", id.String()), zap.Error(err))
			return
		}
	}
}

func (h *Handler) writeLookupError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ErrSessionNotFound) {
		apiresp.Write(w, r, http.StatusNotFound, apiresp.Response{OK: false, Error: "session not found"})
		return
	}
	h.logger.Error("session lookup", zap.Error(err))
	apiresp.Write(w, r, http.StatusInternalServerError, apiresp.Response{OK: false, Error: "internal error"})
}

func sessionIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		apiresp.Write(w, r, http.StatusBadRequest, apiresp.Response{OK: false, Error: "invalid session id"})
		return uuid.Nil, false
	}
	return id, true
}

func clientHost(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
