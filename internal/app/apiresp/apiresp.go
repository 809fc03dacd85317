package apiresp

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// Response is what handlers hand to Write. Error is only read when OK is false.
type Response struct {
	OK    bool
	Data  interface{}
	Error string
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Meta struct {
	RequestID string `json:"request_id,omitempty"`
}

type Envelope struct {
	OK    bool          `json:"ok"`
	Data  interface{}   `json:"data,omitempty"`
	Error *ErrorPayload `json:"error,omitempty"`
	Meta  Meta          `json:"meta"`
}

var errorCodes = map[int]string{
	http.StatusBadRequest:           "invalid_request",
	http.StatusUnauthorized:         "unauthorized",
	http.StatusForbidden:            "forbidden",
	http.StatusNotFound:             "not_found",
	http.StatusUnsupportedMediaType: "unsupported_format",
	http.StatusUnprocessableEntity:  "unprocessable_entity",
	http.StatusTooManyRequests:      "rate_limited",
	http.StatusInternalServerError:  "internal_error",
	http.StatusServiceUnavailable:   "unavailable",
}

func Write(w http.ResponseWriter, r *http.Request, status int, res Response) {
	env := Envelope{
		OK:   res.OK,
		Meta: Meta{RequestID: middleware.GetReqID(r.Context())},
	}
	if res.OK {
		env.Data = res.Data
	} else {
		env.Error = newErrorPayload(status, res.Error)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

func WriteOK(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	Write(w, r, status, Response{OK: true, Data: data})
}

func WriteError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	Write(w, r, status, Response{Error: msg})
}

func newErrorPayload(status int, msg string) *ErrorPayload {
	if msg == "" {
		msg = http.StatusText(status)
	}
	code, ok := errorCodes[status]
	if !ok {
		code = "error"
	}
	return &ErrorPayload{Code: code, Message: msg}
}
