package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"quizforge/internal/bank"
	"quizforge/internal/quiz"
)

type mockSessionService struct {
	startFn  func(ctx context.Context, bankName string) (*Session, error)
	getFn    func(ctx context.Context, id uuid.UUID) (*Session, error)
	selectFn func(ctx context.Context, id uuid.UUID, group, value string) (*quiz.Feedback, error)
}

func (m *mockSessionService) Start(ctx context.Context, bankName string) (*Session, error) {
	if m.startFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.startFn(ctx, bankName)
}

func (m *mockSessionService) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	if m.getFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.getFn(ctx, id)
}

func (m *mockSessionService) Select(ctx context.Context, id uuid.UUID, group, value string) (*quiz.Feedback, error) {
	if m.selectFn == nil {
		return nil, errors.New("not implemented")
	}
	return m.selectFn(ctx, id, group, value)
}

type envelope struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func newTestRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Post("/sessions", h.Start)
	r.Get("/sessions/{id}", h.Get)
	r.Post("/sessions/{id}/select", h.Select)
	r.Get("/sessions/{id}/ws", h.Stream)
	return r
}

func decodeEnvelope(t *testing.T, body *bytes.Buffer) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v body=%s", err, body.String())
	}
	return env
}

func TestHandlerStart(t *testing.T) {
	id := uuid.New()
	svc := &mockSessionService{
		startFn: func(ctx context.Context, bankName string) (*Session, error) {
			switch bankName {
			case "demo":
				return &Session{ID: id, Bank: "demo", Markup: "<div></div>", AnswerKey: quiz.AnswerKey{"q1": "c"}, Questions: 1}, nil
			case "":
				return nil, ErrInvalidInput
			default:
				return nil, bank.ErrBankNotFound
			}
		},
	}
	router := newTestRouter(NewHandler(svc, zap.NewNop()))

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{name: "created", body: `{"bank":"demo"}`, wantStatus: http.StatusCreated},
		{name: "missing bank", body: `{}`, wantStatus: http.StatusBadRequest},
		{name: "unknown bank", body: `{"bank":"nope"}`, wantStatus: http.StatusNotFound},
		{name: "invalid body", body: `{`, wantStatus: http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(tc.body))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code != tc.wantStatus {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tc.wantStatus, w.Body.String())
			}
		})
	}
}

func TestHandlerStartHidesAnswerKey(t *testing.T) {
	svc := &mockSessionService{
		startFn: func(ctx context.Context, bankName string) (*Session, error) {
			return &Session{ID: uuid.New(), Bank: bankName, AnswerKey: quiz.AnswerKey{"q1": "c"}}, nil
		},
	}
	router := newTestRouter(NewHandler(svc, zap.NewNop()))

	req := httptest.NewRequest(http.MethodPost, "/sessions", strings.NewReader(`{"bank":"demo"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if strings.Contains(w.Body.String(), "answer_key") {
		t.Fatalf("answer key leaked: %s", w.Body.String())
	}
}

func TestHandlerGet(t *testing.T) {
	known := uuid.New()
	svc := &mockSessionService{
		getFn: func(ctx context.Context, id uuid.UUID) (*Session, error) {
			if id == known {
				return &Session{ID: known, Bank: "demo"}, nil
			}
			return nil, ErrSessionNotFound
		},
	}
	router := newTestRouter(NewHandler(svc, zap.NewNop()))

	tests := []struct {
		name       string
		target     string
		wantStatus int
	}{
		{name: "found", target: "/sessions/" + known.String(), wantStatus: http.StatusOK},
		{name: "not found", target: "/sessions/" + uuid.NewString(), wantStatus: http.StatusNotFound},
		{name: "bad id", target: "/sessions/123", wantStatus: http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.target, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code != tc.wantStatus {
				t.Fatalf("got status %d, want %d", w.Code, tc.wantStatus)
			}
		})
	}
}

func TestHandlerSelect(t *testing.T) {
	id := uuid.New()
	handle := quiz.NewFeedbackHandler(quiz.AnswerKey{"q1": "b"}, zap.NewNop())
	svc := &mockSessionService{
		selectFn: func(ctx context.Context, sid uuid.UUID, group, value string) (*quiz.Feedback, error) {
			if sid != id {
				return nil, ErrSessionNotFound
			}
			fb, err := handle(group, value)
			if err != nil {
				return nil, err
			}
			return &fb, nil
		},
	}
	router := newTestRouter(NewHandler(svc, zap.NewNop()))

	tests := []struct {
		name       string
		sessionID  string
		body       string
		wantStatus int
		wantSlots  map[string]string
	}{
		{name: "correct", sessionID: id.String(), body: `{"group":"q1","value":"b"}`, wantStatus: http.StatusOK, wantSlots: map[string]string{"a": "", "b": "Correct", "c": "", "d": ""}},
		{name: "wrong", sessionID: id.String(), body: `{"group":"q1","value":"d"}`, wantStatus: http.StatusOK, wantSlots: map[string]string{"a": "", "b": "", "c": "", "d": "Wrong"}},
		{name: "unknown group", sessionID: id.String(), body: `{"group":"q7","value":"a"}`, wantStatus: http.StatusUnprocessableEntity},
		{name: "unknown option", sessionID: id.String(), body: `{"group":"q1","value":"z"}`, wantStatus: http.StatusUnprocessableEntity},
		{name: "unknown session", sessionID: uuid.NewString(), body: `{"group":"q1","value":"a"}`, wantStatus: http.StatusNotFound},
		{name: "invalid body", sessionID: id.String(), body: `nope`, wantStatus: http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/sessions/"+tc.sessionID+"/select", strings.NewReader(tc.body))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code != tc.wantStatus {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tc.wantStatus, w.Body.String())
			}
			if tc.wantSlots == nil {
				return
			}
			env := decodeEnvelope(t, w.Body)
			var fb quiz.Feedback
			if err := json.Unmarshal(env.Data, &fb); err != nil {
				t.Fatalf("decode feedback: %v", err)
			}
			for l, v := range tc.wantSlots {
				if fb.Slots[l] != v {
					t.Fatalf("slot %s=%q want %q", l, fb.Slots[l], v)
				}
			}
		})
	}
}

func TestHandlerStream(t *testing.T) {
	id := uuid.New()
	handle := quiz.NewFeedbackHandler(quiz.AnswerKey{"q1": "a"}, zap.NewNop())
	svc := &mockSessionService{
		getFn: func(ctx context.Context, sid uuid.UUID) (*Session, error) {
			if sid != id {
				return nil, ErrSessionNotFound
			}
			return &Session{ID: id}, nil
		},
		selectFn: func(ctx context.Context, sid uuid.UUID, group, value string) (*quiz.Feedback, error) {
			fb, err := handle(group, value)
			if err != nil {
				return nil, err
			}
			return &fb, nil
		},
	}
	srv := httptest.NewServer(newTestRouter(NewHandler(svc, zap.NewNop())))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/sessions/" + id.String() + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	if err := conn.WriteJSON(selectRequest{Group: "q1", Value: "a"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var reply streamReply
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("read: %v", err)
	}
	if !reply.OK || reply.Feedback == nil || !reply.Feedback.Correct {
		t.Fatalf("expected correct feedback, got %+v", reply)
	}

	if err := conn.WriteJSON(selectRequest{Group: "q2", Value: "a"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	reply = streamReply{}
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("read: %v", err)
	}
	if reply.OK || reply.Feedback != nil || reply.Error == "" {
		t.Fatalf("expected error reply for unknown group, got %+v", reply)
	}
}

type countingLimiter struct {
	mu   sync.Mutex
	max  int
	seen map[string]int
}

func (l *countingLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen[key]++
	return l.seen[key] <= l.max
}

func TestHandlerStreamRateLimitsSelections(t *testing.T) {
	id := uuid.New()
	var selects atomic.Int32
	svc := &mockSessionService{
		getFn: func(ctx context.Context, sid uuid.UUID) (*Session, error) {
			return &Session{ID: sid}, nil
		},
		selectFn: func(ctx context.Context, sid uuid.UUID, group, value string) (*quiz.Feedback, error) {
			selects.Add(1)
			return &quiz.Feedback{QuestionID: group, Selected: value}, nil
		},
	}
	lim := &countingLimiter{max: 1, seen: map[string]int{}}
	srv := httptest.NewServer(newTestRouter(NewHandler(svc, zap.NewNop(), WithStreamLimiter(lim))))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/sessions/" + id.String() + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	wantOK := []bool{true, false, false}
	for i, ok := range wantOK {
		if err := conn.WriteJSON(selectRequest{Group: "q1", Value: "a"}); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
		var reply streamReply
		if err := conn.ReadJSON(&reply); err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
		if reply.OK != ok {
			t.Fatalf("message %d: got ok=%v want %v (%+v)", i, reply.OK, ok, reply)
		}
		if !ok && reply.Error != "rate limit exceeded" {
			t.Fatalf("message %d: unexpected error %q", i, reply.Error)
		}
	}
	if n := selects.Load(); n != 1 {
		t.Fatalf("limited messages must not reach the service, got %d selects", n)
	}
	lim.mu.Lock()
	defer lim.mu.Unlock()
	if len(lim.seen) != 1 {
		t.Fatalf("expected one limiter key per client and session, got %v", lim.seen)
	}
}

func TestHandlerStreamUnknownSession(t *testing.T) {
	svc := &mockSessionService{
		getFn: func(ctx context.Context, id uuid.UUID) (*Session, error) {
			return nil, ErrSessionNotFound
		},
	}
	router := newTestRouter(NewHandler(svc, zap.NewNop()))

	req := httptest.NewRequest(http.MethodGet, "/sessions/"+uuid.NewString()+"/ws", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
