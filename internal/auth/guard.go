package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"quizforge/internal/app/apiresp"
)

const AdminTokenHeader = "X-Admin-Token"

var (
	ErrAdminDisabled      = errors.New("admin api disabled")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type AdminGuard struct {
	hash   []byte
	logger *zap.Logger
}

// NewAdminGuard returns a guard for hash. An empty hash disables every
// admin route.
func NewAdminGuard(hash string, logger *zap.Logger) (*AdminGuard, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return &AdminGuard{logger: logger}, nil
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, fmt.Errorf("parse admin token hash: %w", err)
	}
	return &AdminGuard{hash: []byte(hash), logger: logger}, nil
}

func (g *AdminGuard) Enabled() bool {
	return len(g.hash) > 0
}

func (g *AdminGuard) Verify(token string) error {
	if !g.Enabled() {
		return ErrAdminDisabled
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(g.hash, []byte(token)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

func (g *AdminGuard) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := g.Verify(r.Header.Get(AdminTokenHeader))
		switch {
		case err == nil:
			next.ServeHTTP(w, r)
		case errors.Is(err, ErrAdminDisabled):
			apiresp.WriteError(w, r, http.StatusForbidden, "admin api disabled")
		default:
			g.logger.Warn("admin token rejected", zap.String("path", r.URL.Path), zap.String("remote_ip", r.RemoteAddr))
			apiresp.WriteError(w, r, http.StatusUnauthorized, "unauthorized")
		}
	})
}

func HashToken(token string, cost int) (string, error) {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(token), cost)
	if err != nil {
		return "", fmt.Errorf("hash admin token: %w", err)
	}
	return string(b), nil
}
