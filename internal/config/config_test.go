package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)

	assert.Equal(t, "absensi.db", cfg.Database)
	assert.Equal(t, "Asia/Jakarta", cfg.TimezoneName)
	assert.NotNil(t, cfg.Location)
	assert.Equal(t, time.Second, cfg.TickInterval)
	assert.Equal(t, "single", cfg.BreakPolicy)
	assert.Equal(t, time.Second, cfg.Sync.InitialBackoff)
	assert.Equal(t, 5, cfg.Sync.MaxAttempts)
	assert.Equal(t, 1, cfg.Sync.WriteRetries)
	assert.Equal(t, "selfies", cfg.Selfie.Prefix)
	assert.Empty(t, cfg.UserID)
}

func TestParse_OverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
		user_id:      "alice"
		timezone:     "UTC"
		break_policy: "unlimited"
		sync: max_attempts: 3
		selfie: bucket: "absensi-selfies"
	`), "absensi.cue")
	require.NoError(t, err)

	assert.Equal(t, "alice", cfg.UserID)
	assert.Equal(t, time.UTC, cfg.Location)
	assert.Equal(t, "unlimited", cfg.BreakPolicy)
	assert.Equal(t, 3, cfg.Sync.MaxAttempts)
	assert.Equal(t, 1, cfg.Sync.WriteRetries)
	assert.Equal(t, "absensi-selfies", cfg.Selfie.Bucket)
	assert.Equal(t, "selfies", cfg.Selfie.Prefix)
}

func TestParse_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unknown policy", `break_policy: "twice"`},
		{"unknown field", `colour: "blue"`},
		{"attempts below one", `sync: max_attempts: 0`},
		{"wrong type", `tick_interval: 5`},
		{"syntax", `user_id: `},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src), "bad.cue")
			require.Error(t, err)
			var ce *Error
			assert.ErrorAs(t, err, &ce)
		})
	}
}

func TestParse_RejectsBadDurationsAndZone(t *testing.T) {
	_, err := Parse([]byte(`
		tick_interval: "soon"
		timezone: "Mars/Olympus"
		sync: initial_backoff: "-1s"
	`), "bad.cue")
	require.Error(t, err)

	var ce *Error
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "timezone, tick_interval, sync.initial_backoff", ce.Field)
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absensi.cue")
	require.NoError(t, os.WriteFile(path, []byte(`
		user_id:  "alice"
		database: "from-file.db"
	`), 0o600))

	t.Setenv(EnvDatabase, "/tmp/from-env.db")
	t.Setenv(EnvSelfieBucket, "env-bucket")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "alice", cfg.UserID)
	assert.Equal(t, "/tmp/from-env.db", cfg.Database)
	assert.Equal(t, "env-bucket", cfg.Selfie.Bucket)
}

func TestLoad_NoFile(t *testing.T) {
	t.Setenv(EnvUserID, "bob")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "bob", cfg.UserID)

	_, err = Load(filepath.Join(t.TempDir(), "missing.cue"))
	assert.Error(t, err)
}
