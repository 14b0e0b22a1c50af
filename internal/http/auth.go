package http

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"adboard/internal/log"
)

// authenticator validates bearer tokens and checks the email claim against
// the allow-list. The dashboard is read-only, so access control is the only
// write-grade concern on this surface.
type authenticator struct {
	secret  []byte
	allowed map[string]struct{}
	log     *log.Logger
}

func newAuthenticator(secret string, allowedEmails []string, logger *log.Logger) *authenticator {
	allowed := make(map[string]struct{}, len(allowedEmails))
	for _, e := range allowedEmails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			allowed[e] = struct{}{}
		}
	}
	return &authenticator{
		secret:  []byte(secret),
		allowed: allowed,
		log:     logger.WithComponent(log.ComponentAuth),
	}
}

// authenticate returns the token's email when the request carries a valid
// token for an allowed account.
func (a *authenticator) authenticate(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", fmt.Errorf("missing authorization header")
	}
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return "", fmt.Errorf("authorization header is not a bearer token")
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}

	email, _ := claims["email"].(string)
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", fmt.Errorf("token has no email claim")
	}
	if _, ok := a.allowed[email]; !ok {
		return "", fmt.Errorf("email %q is not on the allow-list", email)
	}
	return email, nil
}

// withAuth gates a handler behind the authenticator. A server configured
// without a secret runs open, which is how local development works.
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	if s.auth == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		email, err := s.auth.authenticate(r)
		if err != nil {
			s.auth.log.WarnContext(r.Context(), "request rejected",
				log.FieldError, err.Error(), "url", r.URL.Path)
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		s.auth.log.DebugContext(r.Context(), "request authenticated", log.FieldEmail, email)
		next(w, r)
	}
}
