package store

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
)

// CookieSession is a user session store bound to one HTTP request, for
// embedding the client in a web application. The session holds tokens, so
// the gorilla store should encrypt its cookies.
type CookieSession struct {
	store sessions.Store
	name  string
	r     *http.Request
	w     http.ResponseWriter
	dirty bool
}

var _ Store = (*CookieSession)(nil)

// NewCookieSession binds the named gorilla session of r to a Store.
// Changes reach w on Save.
func NewCookieSession(store sessions.Store, name string, r *http.Request, w http.ResponseWriter) *CookieSession {
	return &CookieSession{store: store, name: name, r: r, w: w}
}

func (s *CookieSession) session() (*sessions.Session, error) {
	// gorilla returns a fresh session alongside decode errors for tampered cookies
	sess, err := s.store.Get(s.r, s.name)
	if sess == nil {
		return nil, err
	}
	return sess, nil
}

func (s *CookieSession) Get(ctx context.Context, key string) ([]byte, error) {
	sess, err := s.session()
	if err != nil {
		return nil, err
	}
	v, ok := sess.Values[key].(string)
	if !ok {
		return nil, ErrNotFound
	}
	return []byte(v), nil
}

func (s *CookieSession) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	sess, err := s.session()
	if err != nil {
		return err
	}
	sess.Values[key] = string(value)
	s.dirty = true
	return nil
}

func (s *CookieSession) Delete(ctx context.Context, key string) error {
	sess, err := s.session()
	if err != nil {
		return err
	}
	if _, ok := sess.Values[key]; !ok {
		return nil
	}
	delete(sess.Values, key)
	s.dirty = true
	return nil
}

// Save writes the session cookie if anything changed since the last Save.
// It must run before the response header is written.
func (s *CookieSession) Save() error {
	if !s.dirty {
		return nil
	}
	sess, err := s.session()
	if err != nil {
		return err
	}
	if err := sess.Save(s.r, s.w); err != nil {
		return err
	}
	s.dirty = false
	return nil
}
