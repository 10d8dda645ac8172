package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/rollcall/internal/dependencies/mocks"
	"github.com/mcoot/rollcall/internal/model"
)

type ServiceSuite struct {
	suite.Suite
	clock   *mocks.MockClock
	service *Service
	ctx     context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func mustHash(secret string) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return string(hash)
}

func (s *ServiceSuite) SetupTest() {
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	cfg := DefaultConfig()
	cfg.Coordinators = []model.Coordinator{
		{Username: "admin", PasswordHash: mustHash("password123")},
	}
	cfg.TokenHash = mustHash("static-token")
	s.service = New(s.clock, mocks.NewMockRandom(), cfg)
	s.ctx = context.Background()
}

// Login tests

func (s *ServiceSuite) TestLoginSucceeds() {
	session, err := s.service.Login(s.ctx, "admin", "password123")
	s.Require().NoError(err)

	s.True(strings.HasPrefix(session.Token, "sess_"))
	s.Equal("admin", session.Username)
	s.Equal(s.clock.Now().Add(24*time.Hour), session.ExpiresAt)
}

func (s *ServiceSuite) TestLoginFailsWithWrongPassword() {
	_, err := s.service.Login(s.ctx, "admin", "wrongpassword")
	s.ErrorIs(err, ErrInvalidCredentials)
}

func (s *ServiceSuite) TestLoginFailsWithUnknownUser() {
	_, err := s.service.Login(s.ctx, "nobody", "password123")
	s.ErrorIs(err, ErrInvalidCredentials)
}

func (s *ServiceSuite) TestLoginIssuesDistinctTokens() {
	first, _ := s.service.Login(s.ctx, "admin", "password123")
	second, _ := s.service.Login(s.ctx, "admin", "password123")
	s.NotEqual(first.Token, second.Token)
}

// ValidateSession tests

func (s *ServiceSuite) TestValidateSessionSucceeds() {
	session, _ := s.service.Login(s.ctx, "admin", "password123")

	validated, err := s.service.ValidateSession(session.Token)
	s.Require().NoError(err)
	s.Equal(session.Token, validated.Token)
}

func (s *ServiceSuite) TestValidateSessionFailsWithInvalidToken() {
	_, err := s.service.ValidateSession("invalid_token")
	s.ErrorIs(err, ErrInvalidSession)

	_, err = s.service.ValidateSession("")
	s.ErrorIs(err, ErrInvalidSession)
}

func (s *ServiceSuite) TestValidateSessionFailsWhenExpired() {
	session, _ := s.service.Login(s.ctx, "admin", "password123")

	// Advance time past expiration
	s.clock.Advance(25 * time.Hour)

	_, err := s.service.ValidateSession(session.Token)
	s.ErrorIs(err, ErrInvalidSession)
}

func (s *ServiceSuite) TestStaticTokenAccepted() {
	session, err := s.service.ValidateSession("static-token")
	s.Require().NoError(err)
	s.Equal(tokenUsername, session.Username)

	// Second check takes the remembered path
	_, err = s.service.ValidateSession("static-token")
	s.NoError(err)

	_, err = s.service.ValidateSession("static-tokeN")
	s.ErrorIs(err, ErrInvalidSession)
}

func (s *ServiceSuite) TestStaticTokenDisabledWithoutHash() {
	service := New(s.clock, mocks.NewMockRandom(), DefaultConfig())
	_, err := service.ValidateSession("static-token")
	s.ErrorIs(err, ErrInvalidSession)
}

// InvalidateSession tests

func (s *ServiceSuite) TestInvalidateSessionRemovesSession() {
	session, _ := s.service.Login(s.ctx, "admin", "password123")

	s.service.InvalidateSession(session.Token)

	_, err := s.service.ValidateSession(session.Token)
	s.ErrorIs(err, ErrInvalidSession)
}

func (s *ServiceSuite) TestInvalidateSessionNoopForUnknownToken() {
	// Should not panic
	s.service.InvalidateSession("unknown_token")
}

// CleanExpiredSessions tests

func (s *ServiceSuite) TestCleanExpiredSessionsRemovesExpired() {
	session1, _ := s.service.Login(s.ctx, "admin", "password123")

	// Advance time so session1 expires
	s.clock.Advance(25 * time.Hour)

	// Create a new session (not expired)
	session2, _ := s.service.Login(s.ctx, "admin", "password123")

	s.service.CleanExpiredSessions()

	// session1 should be gone
	_, err := s.service.ValidateSession(session1.Token)
	s.ErrorIs(err, ErrInvalidSession)

	// session2 should still be valid
	_, err = s.service.ValidateSession(session2.Token)
	s.NoError(err)
}

func (s *ServiceSuite) TestHashSecretRoundTrip() {
	hash, err := HashSecret("s3cret")
	s.Require().NoError(err)
	s.NoError(bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")))
}
