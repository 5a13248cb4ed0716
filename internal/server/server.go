// Package server exposes the API client over HTTP for browser applications.
// Every visitor has its own user session, kept in an encrypted cookie, while
// the anonymous client token is shared by the whole process.
package server

import (
	"crypto/sha256"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	apierrors "github.com/poken/poseidon/internal/errors"
	"github.com/poken/poseidon/internal/service"
	"github.com/poken/poseidon/internal/store"
	"github.com/poken/poseidon/internal/token"
	"github.com/poken/poseidon/internal/transport"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/hkdf"
)

// SessionName is the name of the session cookie
const SessionName = "poseidon"

// apiPrefix routes requests to the API
const apiPrefix = "/api/"

// Cookie key sizes: HMAC-SHA256 and AES-256
const (
	hashKeyLength  = 32
	blockKeyLength = 32
)

// NewCookieStore creates the store for visitor sessions. Cookies are signed
// and encrypted with keys derived from secret, or with random keys when
// secret is empty. secure restricts them to HTTPS.
func NewCookieStore(secret string, secure bool) (*sessions.CookieStore, error) {
	hashKey, blockKey, err := cookieKeys(secret)
	if err != nil {
		return nil, err
	}
	cookies := sessions.NewCookieStore(hashKey, blockKey)
	cookies.Options.HttpOnly = true
	cookies.Options.SameSite = http.SameSiteLaxMode
	cookies.Options.Secure = secure
	return cookies, nil
}

func cookieKeys(secret string) (hashKey, blockKey []byte, err error) {
	if secret == "" {
		return securecookie.GenerateRandomKey(hashKeyLength), securecookie.GenerateRandomKey(blockKeyLength), nil
	}
	keys := hkdf.New(sha256.New, []byte(secret), nil, []byte("poseidon session cookie"))
	hashKey = make([]byte, hashKeyLength)
	blockKey = make([]byte, blockKeyLength)
	if _, err := io.ReadFull(keys, hashKey); err != nil {
		return nil, nil, err
	}
	if _, err := io.ReadFull(keys, blockKey); err != nil {
		return nil, nil, err
	}
	return hashKey, blockKey, nil
}

// Server serves the API proxy
type Server struct {
	sessions *service.Sessions
	cookies  sessions.Store
	logger   zerolog.Logger
}

// New creates a server. cookies holds the visitor sessions, see NewCookieStore.
func New(sessions *service.Sessions, cookies sessions.Store, logger zerolog.Logger) *Server {
	return &Server{sessions: sessions, cookies: cookies, logger: logger}
}

// Handler returns the HTTP routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", s.handleLogin)
	mux.HandleFunc("/logout", s.handleLogout)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc(apiPrefix, s.handleAPI)
	return mux
}

// visit is one request of a visitor
type visit struct {
	*service.Session
	cookie *store.CookieSession
}

func (s *Server) open(w http.ResponseWriter, r *http.Request) (*visit, bool) {
	cookie := store.NewCookieSession(s.cookies, SessionName, r, w)
	sess, err := s.sessions.OpenWith(r.Context(), cookie)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to open session")
		s.writeError(w, http.StatusInternalServerError, "session unavailable")
		return nil, false
	}
	return &visit{Session: sess, cookie: cookie}, true
}

// reply saves the visitor session, then writes body
func (s *Server) reply(w http.ResponseWriter, v *visit, status int, body any) {
	if err := v.cookie.Save(); err != nil {
		s.logger.Error().Err(err).Msg("failed to save session")
		s.writeError(w, http.StatusInternalServerError, "session unavailable")
		return
	}
	s.writeJSON(w, status, body)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	if err := r.ParseForm(); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess, ok := s.open(w, r)
	if !ok {
		return
	}

	params := transport.P("username", r.PostForm.Get("username"), "password", r.PostForm.Get("password"))
	if err := sess.User.Connect(r.Context(), token.GrantPassword, params); err != nil {
		s.writeFailure(w, sess, err)
		return
	}
	s.reply(w, sess, http.StatusOK, map[string]any{"logged_in": true})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	sess, ok := s.open(w, r)
	if !ok {
		return
	}
	if err := sess.User.Disconnect(r.Context()); err != nil {
		s.writeFailure(w, sess, err)
		return
	}
	s.reply(w, sess, http.StatusOK, map[string]any{"logged_in": false})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.open(w, r)
	if !ok {
		return
	}
	s.reply(w, sess, http.StatusOK, map[string]any{
		"logged_in": sess.User.Authenticated(r.Context()),
		"token":     sess.Client.Token().Status().String(),
	})
}

func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, apiPrefix)
	if path == "" {
		s.writeError(w, http.StatusNotFound, "missing api path")
		return
	}

	var body *transport.Body
	params := transport.FromValues(r.URL.Query())
	switch r.Method {
	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		params = transport.FromValues(r.PostForm).Merge(params)
	case http.MethodPut:
		data, err := io.ReadAll(r.Body)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if len(data) > 0 {
			body = &transport.Body{Data: data, ContentType: r.Header.Get("Content-Type")}
		}
	}

	sess, ok := s.open(w, r)
	if !ok {
		return
	}
	content, err := sess.Client.Open(r.Context(), transport.Method(r.Method), path, params, body)
	if err != nil {
		s.writeFailure(w, sess, err)
		return
	}
	s.reply(w, sess, http.StatusOK, content)
}

// writeFailure maps client errors to HTTP statuses. The session is saved
// too: a failed login still resets the visitor to the application token.
func (s *Server) writeFailure(w http.ResponseWriter, v *visit, err error) {
	var (
		apiErr  *apierrors.APIError
		authErr *apierrors.AuthenticationError
	)
	status, message := http.StatusBadGateway, err.Error()
	switch {
	case apierrors.As(err, &apiErr):
		status, message = apiErr.StatusCode, apiErr.Description
	case apierrors.As(err, &authErr):
		status, message = http.StatusUnauthorized, authErr.Description
	case apierrors.IsUnauthorized(err):
		status = http.StatusUnauthorized
	case apierrors.Is(err, apierrors.ErrUnsupportedMethod):
		status = http.StatusMethodNotAllowed
	case apierrors.Is(err, apierrors.ErrUnexpectedStatus):
		s.logger.Warn().Err(err).Msg("unexpected api response")
	default:
		s.logger.Error().Err(err).Msg("api call failed")
	}
	s.reply(w, v, status, map[string]any{"error": message})
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{"error": message})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// the status line is already out
		s.logger.Debug().Err(err).Msg("failed to write response")
	}
}
