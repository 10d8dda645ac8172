package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/rollcall/internal/model"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rollcall.test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFileMissingUsesDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Empty(t, cfg.Source)
	assert.Equal(t, 10, cfg.Capacity)
	assert.Equal(t, 2*time.Hour, cfg.AutoClose)
	assert.Equal(t, model.ChannelID("roster"), cfg.DisplayChannelID)
	assert.Equal(t, "FIN", cfg.EndToken)
	assert.Equal(t, "CONFIRMAR", cfg.ConfirmToken)
	assert.Equal(t, StorageMemory, cfg.Storage.Type)
	assert.Equal(t, 8080, cfg.HTTP.Port)
}

func TestLoadFileReadsYAML(t *testing.T) {
	path := writeConfig(t, `
capacity: 12
auto_close: 90m
auto_add_channel_id: bench
send_reminders: true
storage:
  type: sqlite
  sqlite_path: /tmp/rc.db
auth:
  coordinators:
    - username: admin
      password_hash: "$2a$10$abc"
participants:
  - id: "7"
    display_name: Gus
    roles: [players]
`)
	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.Source)
	assert.Equal(t, 12, cfg.Capacity)
	assert.Equal(t, 90*time.Minute, cfg.AutoClose)
	assert.Equal(t, model.ChannelID("bench"), cfg.AutoAddChannelID)
	assert.True(t, cfg.SendReminders)
	assert.Equal(t, StorageSQLite, cfg.Storage.Type)
	assert.Equal(t, "/tmp/rc.db", cfg.Storage.SQLitePath)
	require.Len(t, cfg.Auth.Coordinators, 1)
	assert.Equal(t, "admin", cfg.Auth.Coordinators[0].Username)
	require.Len(t, cfg.Participants, 1)
	assert.Equal(t, []model.RoleID{"players"}, cfg.Participants[0].Roles)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, "capacity: 12\n")
	t.Setenv("ROLLCALL_CAPACITY", "20")
	t.Setenv("ROLLCALL_STORAGE_TYPE", "redis")
	t.Setenv("ROLLCALL_HTTP_PORT", "9090")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Capacity)
	assert.Equal(t, StorageRedis, cfg.Storage.Type)
	assert.Equal(t, 9090, cfg.HTTP.Port)
}

func TestLoadFileRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"capacity zero", "capacity: 0\n"},
		{"capacity too large", "capacity: 51\n"},
		{"negative timeout", "input_timeout: -1s\n"},
		{"zero notice retention", "notice_retention: 0s\n"},
		{"same tokens", "end_token: ok\nconfirm_token: OK\n"},
		{"unknown storage", "storage:\n  type: etcd\n"},
		{"participant without id", "participants:\n  - display_name: Nobody\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(writeConfig(t, tt.body))
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestLoadFileRejectsMalformedYAML(t *testing.T) {
	_, err := LoadFile(writeConfig(t, "capacity: [\n"))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalid)
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, model.RoleID("players"), cfg.ParticipantRoleID)
	assert.Equal(t, 24*time.Hour, cfg.Auth.SessionDuration)
	assert.Equal(t, 101*time.Second, cfg.HousekeepingInterval)
	assert.Equal(t, 101*time.Second, cfg.NoticeRetention)
}
