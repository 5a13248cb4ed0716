package service

import (
	"context"
	"sync"
	"time"

	"github.com/poken/poseidon/internal/api"
	"github.com/poken/poseidon/internal/config"
	apierrors "github.com/poken/poseidon/internal/errors"
	"github.com/poken/poseidon/internal/store"
	"github.com/poken/poseidon/internal/token"
	"github.com/poken/poseidon/internal/user"
	"github.com/rs/zerolog"
)

// redisLocalTTL is how long the in-process tier keeps redis values
const redisLocalTTL = time.Minute

// Session bundles the client and the user built from the configuration.
type Session struct {
	Config *config.Config
	Client *api.Client
	User   *user.User
	Store  store.Store
}

// Sessions opens the CLI session once per process. The shared cache is
// created on first use and reused by every client of the process.
type Sessions struct {
	configManager *config.Manager
	logger        zerolog.Logger

	mu      sync.Mutex
	shared  *store.Shared
	current *Session
}

// NewSessions creates the session opener
func NewSessions(configManager *config.Manager, logger zerolog.Logger) *Sessions {
	return &Sessions{configManager: configManager, logger: logger}
}

// Open returns the session of the CLI user, whose state lives in the
// session file.
func (s *Sessions) Open(ctx context.Context) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		return s.current, nil
	}

	cfg, err := s.loadConfig()
	if err != nil {
		return nil, err
	}
	sess, err := s.openLocked(ctx, cfg, store.NewFileStore(cfg.SessionFile))
	if err != nil {
		return nil, err
	}
	s.current = sess
	return sess, nil
}

// OpenWith builds a session around an external session store, such as the
// cookie session of an HTTP request.
func (s *Sessions) OpenWith(ctx context.Context, session store.Store) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.loadConfig()
	if err != nil {
		return nil, err
	}
	return s.openLocked(ctx, cfg, session)
}

// Reset drops the cached session so the next Open reloads the configuration.
func (s *Sessions) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
}

func (s *Sessions) loadConfig() (*config.Config, error) {
	cfg, err := s.configManager.Load()
	if err != nil {
		return nil, apierrors.Wrapf(err, "failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (s *Sessions) openLocked(ctx context.Context, cfg *config.Config, session store.Store) (*Session, error) {
	if s.shared == nil {
		backend, err := newSharedStore(ctx, cfg)
		if err != nil {
			return nil, apierrors.Wrapf(err, "failed to open %s cache", cfg.Cache)
		}
		s.shared = store.NewShared(backend)
	}

	client, err := api.New(ctx, api.Options{
		ID:            cfg.ClientID,
		Secret:        cfg.ClientSecret,
		Path:          cfg.APIPath,
		Format:        cfg.Format,
		UserAgent:     cfg.UserAgent,
		Timeout:       cfg.Timeout(),
		Logger:        &s.logger,
		Authenticated: user.Status(ctx, session),
	}, token.Stores{Session: session, Shared: s.shared})
	if err != nil {
		return nil, apierrors.Wrapf(err, "failed to create client")
	}

	return &Session{
		Config: cfg,
		Client: client,
		User:   user.New(session, client),
		Store:  session,
	}, nil
}

// newSharedStore creates the configured shared cache backend
func newSharedStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Cache {
	case config.CacheMemory:
		return store.NewMemoryStore(0), nil
	case config.CacheRedis:
		return store.NewRedisStore(ctx, cfg.RedisURL, redisLocalTTL)
	case config.CacheMemcached:
		return store.NewMemcachedStore(cfg.MemcachedServers...), nil
	}
	return store.NewFileStore(cfg.CacheFile), nil
}
