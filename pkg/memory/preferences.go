package memory

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// UserPreferences holds booking preferences learned from a user's queries.
type UserPreferences struct {
	UserID      string    `json:"user_id"`
	Genres      []string  `json:"preferred_genres"`
	Locations   []string  `json:"preferred_locations"`
	CapacityMin int       `json:"capacity_min,omitempty"`
	CapacityMax int       `json:"capacity_max,omitempty"`
	Notes       []string  `json:"notes"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ContextString renders preferences as prompt context.
func (p *UserPreferences) ContextString() string {
	parts := []string{}
	if len(p.Genres) > 0 {
		parts = append(parts, "Preferred genres: "+strings.Join(p.Genres, ", "))
	}
	if len(p.Locations) > 0 {
		parts = append(parts, "Preferred locations: "+strings.Join(p.Locations, ", "))
	}
	if p.CapacityMax > 0 {
		parts = append(parts, fmt.Sprintf("Preferred capacity range: %d-%d", p.CapacityMin, p.CapacityMax))
	}
	if len(p.Notes) > 0 {
		parts = append(parts, "Notes: "+strings.Join(p.Notes, "; "))
	}
	if len(parts) == 0 {
		return "No known preferences."
	}
	return strings.Join(parts, "\n")
}

func (p *UserPreferences) addGenre(genre string) {
	for _, g := range p.Genres {
		if strings.EqualFold(g, genre) {
			return
		}
	}
	p.Genres = append(p.Genres, genre)
}

func (p *UserPreferences) addLocation(location string) {
	for _, l := range p.Locations {
		if strings.EqualFold(l, location) {
			return
		}
	}
	p.Locations = append(p.Locations, location)
}

// PreferenceStore persists user preferences in SQLite so they survive
// restarts. Rows hold the whole preference record as JSON.
type PreferenceStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewPreferenceStore opens (or creates) the preference database at path.
// Use ":memory:" for an ephemeral store.
func NewPreferenceStore(path string, logger zerolog.Logger) (*PreferenceStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open preference db: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS user_preferences (
		user_id TEXT PRIMARY KEY,
		data TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create preference schema: %w", err)
	}

	return &PreferenceStore{
		db:     db,
		logger: logger.With().Str("component", "preference_store").Logger(),
	}, nil
}

// Close releases the underlying database handle.
func (s *PreferenceStore) Close() error {
	return s.db.Close()
}

// Get loads preferences for a user. Unknown users get an empty record.
func (s *PreferenceStore) Get(userID string) (*UserPreferences, error) {
	var data string
	err := s.db.QueryRow(
		"SELECT data FROM user_preferences WHERE user_id = ?", userID,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return &UserPreferences{UserID: userID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load preferences: %w", err)
	}

	var prefs UserPreferences
	if err := json.Unmarshal([]byte(data), &prefs); err != nil {
		return nil, fmt.Errorf("failed to decode preferences: %w", err)
	}
	return &prefs, nil
}

// Save upserts a user's preference record.
func (s *PreferenceStore) Save(prefs *UserPreferences) error {
	prefs.UpdatedAt = time.Now()
	data, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO user_preferences (user_id, data, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		prefs.UserID, string(data), prefs.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save preferences: %w", err)
	}
	return nil
}

// PreferenceUpdate carries facts extracted from a user query.
type PreferenceUpdate struct {
	Genres      []string
	Locations   []string
	CapacityMin int
	CapacityMax int
	Note        string
}

// Update merges extracted facts into the user's stored preferences.
func (s *PreferenceStore) Update(userID string, update PreferenceUpdate) error {
	prefs, err := s.Get(userID)
	if err != nil {
		return err
	}

	for _, genre := range update.Genres {
		prefs.addGenre(genre)
	}
	for _, location := range update.Locations {
		prefs.addLocation(location)
	}
	if update.CapacityMax > 0 {
		prefs.CapacityMin = update.CapacityMin
		prefs.CapacityMax = update.CapacityMax
	}
	if update.Note != "" {
		prefs.Notes = append(prefs.Notes, update.Note)
	}

	if err := s.Save(prefs); err != nil {
		return err
	}
	s.logger.Debug().Str("user_id", userID).Msg("updated preferences")
	return nil
}

// Context returns the preference context string for prompt assembly.
func (s *PreferenceStore) Context(userID string) (string, error) {
	prefs, err := s.Get(userID)
	if err != nil {
		return "", err
	}
	return prefs.ContextString(), nil
}

// Clear deletes a user's preferences.
func (s *PreferenceStore) Clear(userID string) error {
	_, err := s.db.Exec("DELETE FROM user_preferences WHERE user_id = ?", userID)
	if err != nil {
		return fmt.Errorf("failed to clear preferences: %w", err)
	}
	return nil
}
