package breaker

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copybotio/copybot/internal/domain"
)

func TestStateStore_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "breaker.json")
	store := NewStateStore(path)

	activatedAt := time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)
	cooldownUntil := activatedAt.Add(time.Hour)
	st := State{
		Active:            true,
		Reason:            "daily loss limit reached: 110 >= 100",
		ActivatedAt:       &activatedAt,
		CooldownUntil:     &cooldownUntil,
		DailyLoss:         dec("110.25"),
		MaxDailyLoss:      dec("100"),
		ConsecutiveLosses: 3,
		LastResetDate:     "2025-03-10",
	}

	require.NoError(t, store.Save(st))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, st.Active, got.Active)
	assert.Equal(t, st.Reason, got.Reason)
	assert.True(t, got.ActivatedAt.Equal(activatedAt))
	assert.True(t, got.CooldownUntil.Equal(cooldownUntil))
	assert.True(t, got.DailyLoss.Equal(st.DailyLoss))
	assert.True(t, got.MaxDailyLoss.Equal(st.MaxDailyLoss))
	assert.Equal(t, st.ConsecutiveLosses, got.ConsecutiveLosses)
	assert.Equal(t, st.LastResetDate, got.LastResetDate)
}

func TestStateStore_SaveInactiveNullFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "breaker.json")
	store := NewStateStore(path)

	st := defaultState(dec("500"), time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC))
	require.NoError(t, store.Save(st))

	got, err := store.Load()
	require.NoError(t, err)
	assert.False(t, got.Active)
	assert.Empty(t, got.Reason)
	assert.Nil(t, got.ActivatedAt)
	assert.Nil(t, got.CooldownUntil)
	assert.True(t, got.DailyLoss.IsZero())
}

func TestStateStore_MissingFile(t *testing.T) {
	store := NewStateStore(filepath.Join(t.TempDir(), "does-not-exist.json"))

	_, err := store.Load()
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStateStore_CorruptFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"truncated json", `{"active": true, "daily_l`},
		{"bad decimal", `{"active":false,"daily_loss":"not-a-number","max_daily_loss":"100","consecutive_losses":0,"last_reset_date":"2025-03-10"}`},
		{"negative counter", `{"active":false,"daily_loss":"5","max_daily_loss":"100","consecutive_losses":-1,"last_reset_date":"2025-03-10"}`},
		{"bad date", `{"active":false,"daily_loss":"5","max_daily_loss":"100","consecutive_losses":0,"last_reset_date":"March 10"}`},
		{"active without reason", `{"active":true,"daily_loss":"5","max_daily_loss":"100","consecutive_losses":0,"last_reset_date":"2025-03-10"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "breaker.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			_, err := NewStateStore(path).Load()
			assert.ErrorIs(t, err, domain.ErrStateCorrupt)
		})
	}
}

func TestNew_CorruptFileFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "breaker.json")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0o644))

	b := New(Config{MaxDailyLoss: dec("100"), Cooldown: time.Hour}, NewStateStore(path), discardLogger())

	assert.False(t, b.IsActive())
	assert.True(t, b.DailyLoss().IsZero())
	assert.True(t, b.CheckTradeAllowed("t-1").Allowed)
}

func TestStateStore_SaveOverwritesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "breaker.json")
	store := NewStateStore(path)

	now := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Save(defaultState(dec("100"), now)))

	st := defaultState(dec("100"), now)
	st.DailyLoss = dec("42")
	require.NoError(t, store.Save(st))

	got, err := store.Load()
	require.NoError(t, err)
	assert.True(t, got.DailyLoss.Equal(dec("42")))

	// No temp files may be left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
