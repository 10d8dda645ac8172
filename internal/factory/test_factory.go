package factory

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/rollcall/internal/config"
	"github.com/mcoot/rollcall/internal/dependencies/mocks"
	"github.com/mcoot/rollcall/internal/model"
	"github.com/mcoot/rollcall/internal/storage/memory"
	"github.com/mcoot/rollcall/internal/testutil"
)

// Test credentials accepted by every TestApp
const (
	TestUsername = "admin"
	TestPassword = "password123"
	TestToken    = "test-api-token"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	Config  *config.Config
	Storage *memory.Storage

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockRandom *mocks.MockRandom
}

// NewTestApp creates an App configured for testing with mocked
// dependencies. opts adjust the configuration before anything is wired.
func NewTestApp(opts ...func(*config.Config)) *TestApp {
	cfg := config.Default()
	cfg.Participants = []model.Participant{
		{ID: "p1", DisplayName: "Alice", Roles: []model.RoleID{"players"}},
		{ID: "p2", DisplayName: "Bob", Roles: []model.RoleID{"players"}},
		{ID: "p3", DisplayName: "Carol", Roles: []model.RoleID{"players"}},
		{ID: "p4", DisplayName: "Dave"},
	}
	cfg.Auth.Coordinators = []model.Coordinator{
		{Username: TestUsername, PasswordHash: mustHash(TestPassword)},
	}
	cfg.Auth.TokenHash = mustHash(TestToken)
	for _, opt := range opts {
		opt(cfg)
	}

	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()

	app := newWithDependencies(cfg, store, mockClock, mockRandom, testutil.NopLogger())

	return &TestApp{
		App:        app,
		Config:     cfg,
		Storage:    store,
		MockClock:  mockClock,
		MockRandom: mockRandom,
	}
}

func mustHash(secret string) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return string(hash)
}
