package server

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/zeusync/gamecore/internal/core/observability/log"
)

// Authenticator decides whether a request may use the inspector.
type Authenticator interface {
	Authenticate(r *http.Request) error
}

// TokenAuth accepts a static token from the "token" query parameter or a
// bearer Authorization header. An empty Token allows everything.
type TokenAuth struct {
	Token string
}

func (a TokenAuth) Authenticate(r *http.Request) error {
	if a.Token == "" {
		return nil
	}
	token := r.URL.Query().Get("token")
	if token == "" {
		token, _ = strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(a.Token)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

func (s *Server) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.auth != nil {
			if err := s.auth.Authenticate(r); err != nil {
				s.logger.Debug("rejected inspector request", log.String("remote", r.RemoteAddr), log.Error(err))
				writeError(w, http.StatusUnauthorized, err)
				return
			}
		}
		next(w, r)
	}
}
