package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/rollcall/internal/dependencies/clock"
	"github.com/mcoot/rollcall/internal/dependencies/random"
	"github.com/mcoot/rollcall/internal/model"
)

// Errors
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidSession     = errors.New("invalid or expired session")
)

// tokenUsername is the coordinator name attached to the static API token
const tokenUsername = "api-token"

// Session represents an authenticated coordinator
type Session struct {
	Token     string
	Username  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Service authenticates coordinators. Coordinators log in with a
// username and password checked against bcrypt hashes; automation can
// instead present a static token whose bcrypt hash is configured.
type Service struct {
	clock  clock.Clock
	random random.Random

	coordinators map[string]string // username -> bcrypt hash
	tokenHash    string

	mu            sync.RWMutex
	sessions      map[string]*Session
	verifiedToken string

	sessionDuration time.Duration
}

// Config holds configuration for the auth service
type Config struct {
	SessionDuration time.Duration
	Coordinators    []model.Coordinator

	// TokenHash is the bcrypt hash of the static API token. Empty disables it.
	TokenHash string
}

// DefaultConfig returns default auth configuration
func DefaultConfig() Config {
	return Config{
		SessionDuration: 24 * time.Hour,
	}
}

// New creates a new auth Service
func New(clk clock.Clock, rnd random.Random, cfg Config) *Service {
	if cfg.SessionDuration == 0 {
		cfg.SessionDuration = DefaultConfig().SessionDuration
	}
	coordinators := make(map[string]string, len(cfg.Coordinators))
	for _, c := range cfg.Coordinators {
		coordinators[c.Username] = c.PasswordHash
	}
	return &Service{
		clock:           clk,
		random:          rnd,
		coordinators:    coordinators,
		tokenHash:       cfg.TokenHash,
		sessions:        make(map[string]*Session),
		sessionDuration: cfg.SessionDuration,
	}
}

// Login authenticates a coordinator and creates a session
func (s *Service) Login(_ context.Context, username, password string) (*Session, error) {
	hash, ok := s.coordinators[username]
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.createSession(username), nil
}

// ValidateSession checks a bearer token. It accepts session tokens
// issued by Login and the configured static API token.
func (s *Service) ValidateSession(token string) (*Session, error) {
	if token == "" {
		return nil, ErrInvalidSession
	}

	s.mu.RLock()
	session, ok := s.sessions[token]
	s.mu.RUnlock()

	if !ok {
		if s.checkStaticToken(token) {
			now := s.clock.Now()
			return &Session{Token: token, Username: tokenUsername, CreatedAt: now, ExpiresAt: now.Add(s.sessionDuration)}, nil
		}
		return nil, ErrInvalidSession
	}

	if s.clock.Now().After(session.ExpiresAt) {
		s.mu.Lock()
		delete(s.sessions, token)
		s.mu.Unlock()
		return nil, ErrInvalidSession
	}

	return session, nil
}

// checkStaticToken compares against the configured hash. After the first
// match the token is remembered so later requests skip bcrypt.
func (s *Service) checkStaticToken(token string) bool {
	if s.tokenHash == "" {
		return false
	}

	s.mu.RLock()
	verified := s.verifiedToken
	s.mu.RUnlock()
	if verified != "" {
		return subtle.ConstantTimeCompare([]byte(verified), []byte(token)) == 1
	}

	if bcrypt.CompareHashAndPassword([]byte(s.tokenHash), []byte(token)) != nil {
		return false
	}
	s.mu.Lock()
	s.verifiedToken = token
	s.mu.Unlock()
	return true
}

// InvalidateSession removes a session
func (s *Service) InvalidateSession(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

// createSession creates a new session for a coordinator
func (s *Service) createSession(username string) *Session {
	token := random.Ref(s.random, "sess") + s.random.String(random.RefLength, random.RefAlphabet)
	now := s.clock.Now()

	session := &Session{
		Token:     token,
		Username:  username,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionDuration),
	}

	s.mu.Lock()
	s.sessions[token] = session
	s.mu.Unlock()

	return session
}

// CleanExpiredSessions removes expired sessions (call periodically)
func (s *Service) CleanExpiredSessions() {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	for token, session := range s.sessions {
		if now.After(session.ExpiresAt) {
			delete(s.sessions, token)
		}
	}
}

// HashSecret returns the bcrypt hash of a password or token, for config files
func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
