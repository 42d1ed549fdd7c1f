package breaker

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"github.com/copybotio/copybot/internal/domain"
)

// stateFile is the on-disk JSON representation of State. Decimal fields are
// serialized as strings so no precision is lost on a round trip; timestamps
// are RFC 3339 UTC.
type stateFile struct {
	Active            bool       `json:"active"`
	Reason            *string    `json:"reason"`
	ActivatedAt       *time.Time `json:"activated_at"`
	CooldownUntil     *time.Time `json:"cooldown_until"`
	DailyLoss         string     `json:"daily_loss"`
	MaxDailyLoss      string     `json:"max_daily_loss"`
	ConsecutiveLosses int        `json:"consecutive_losses"`
	LastResetDate     string     `json:"last_reset_date"`
}

// StateStore loads and persists breaker state to a single JSON file. Writes
// are atomic: the new state is serialized to a temp file in the same
// directory, flushed, and renamed over the target path, so a crash mid-write
// can never leave a half-written file behind.
type StateStore struct {
	path string
}

// NewStateStore creates a StateStore writing to the given file path.
func NewStateStore(path string) *StateStore {
	return &StateStore{path: path}
}

// Path returns the target file path.
func (s *StateStore) Path() string {
	return s.path
}

// Save atomically persists the given state.
func (s *StateStore) Save(st State) error {
	f := stateFile{
		Active:            st.Active,
		ActivatedAt:       st.ActivatedAt,
		CooldownUntil:     st.CooldownUntil,
		DailyLoss:         st.DailyLoss.String(),
		MaxDailyLoss:      st.MaxDailyLoss.String(),
		ConsecutiveLosses: st.ConsecutiveLosses,
		LastResetDate:     st.LastResetDate,
	}
	if st.Reason != "" {
		reason := st.Reason
		f.Reason = &reason
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("state_store: marshal: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".breaker-state-*.json")
	if err != nil {
		return fmt.Errorf("state_store: create temp: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("state_store: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("state_store: sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("state_store: close temp: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("state_store: rename: %w", err)
	}
	return nil
}

// Load reads the persisted state. It returns domain.ErrNotFound when no file
// exists yet and domain.ErrStateCorrupt when the file cannot be parsed; the
// caller decides how to degrade (the breaker falls back to defaults).
func (s *StateStore) Load() (State, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return State{}, fmt.Errorf("state_store: %s: %w", s.path, domain.ErrNotFound)
		}
		return State{}, fmt.Errorf("state_store: read %s: %w", s.path, err)
	}

	var f stateFile
	if err := json.Unmarshal(data, &f); err != nil {
		return State{}, fmt.Errorf("state_store: parse %s: %v: %w", s.path, err, domain.ErrStateCorrupt)
	}

	dailyLoss, err := decimal.NewFromString(f.DailyLoss)
	if err != nil {
		return State{}, fmt.Errorf("state_store: daily_loss %q: %w", f.DailyLoss, domain.ErrStateCorrupt)
	}
	maxDailyLoss, err := decimal.NewFromString(f.MaxDailyLoss)
	if err != nil {
		return State{}, fmt.Errorf("state_store: max_daily_loss %q: %w", f.MaxDailyLoss, domain.ErrStateCorrupt)
	}
	if dailyLoss.IsNegative() || f.ConsecutiveLosses < 0 {
		return State{}, fmt.Errorf("state_store: negative counters in %s: %w", s.path, domain.ErrStateCorrupt)
	}
	if _, err := time.Parse(dateLayout, f.LastResetDate); err != nil {
		return State{}, fmt.Errorf("state_store: last_reset_date %q: %w", f.LastResetDate, domain.ErrStateCorrupt)
	}
	if f.Active && (f.Reason == nil || f.ActivatedAt == nil) {
		return State{}, fmt.Errorf("state_store: active without reason/activated_at in %s: %w", s.path, domain.ErrStateCorrupt)
	}

	st := State{
		Active:            f.Active,
		ActivatedAt:       f.ActivatedAt,
		CooldownUntil:     f.CooldownUntil,
		DailyLoss:         dailyLoss,
		MaxDailyLoss:      maxDailyLoss,
		ConsecutiveLosses: f.ConsecutiveLosses,
		LastResetDate:     f.LastResetDate,
	}
	if f.Reason != nil {
		st.Reason = *f.Reason
	}
	return st, nil
}
