// Package catalog stores the artist and venue inventory that booking agents
// query through tools. Data lives in SQLite; when an embedding provider is
// configured, a vec0 virtual table enables semantic search over bios and
// venue descriptions.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// Artist is a bookable act.
type Artist struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Genres       []string          `json:"genres"`
	Location     string            `json:"location"`
	Bio          string            `json:"bio"`
	SocialLinks  map[string]string `json:"social_links,omitempty"`
	CapacityMin  int               `json:"capacity_min"`
	CapacityMax  int               `json:"capacity_max"`
	YearsActive  int               `json:"years_active"`
	BookingEmail string            `json:"booking_email"`
}

// Venue is a bookable room.
type Venue struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Location       string   `json:"location"`
	Capacity       int      `json:"capacity"`
	GenresBooked   []string `json:"genres_booked"`
	BookingContact string   `json:"booking_contact"`
	PayRange       string   `json:"typical_pay_range"`
	VenueType      string   `json:"venue_type"`
	Ages           string   `json:"ages"`
	Description    string   `json:"description"`
}

// ArtistQuery filters an artist search. Zero values mean "any".
type ArtistQuery struct {
	Genre            string
	Location         string
	MaxVenueCapacity int
	Limit            int
}

// VenueQuery filters a venue search. Zero values mean "any".
type VenueQuery struct {
	Location    string
	MinCapacity int
	MaxCapacity int
	Genre       string
	Limit       int
}

// Store is the catalog database.
type Store struct {
	db       *sql.DB
	embedder EmbeddingProvider
	logger   zerolog.Logger
}

// Open opens (or creates) the catalog at path and ensures the schema.
// Use ":memory:" for tests.
func Open(path string, logger zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog db: %w", err)
	}

	s := &Store{
		db:     db,
		logger: logger.With().Str("component", "catalog").Logger(),
	}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS artists (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		genres TEXT NOT NULL,
		location TEXT NOT NULL,
		bio TEXT NOT NULL,
		social_links TEXT NOT NULL DEFAULT '{}',
		capacity_min INTEGER NOT NULL DEFAULT 0,
		capacity_max INTEGER NOT NULL DEFAULT 0,
		years_active INTEGER NOT NULL DEFAULT 0,
		booking_email TEXT NOT NULL DEFAULT ''
	);
	CREATE TABLE IF NOT EXISTS venues (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		location TEXT NOT NULL,
		capacity INTEGER NOT NULL,
		genres_booked TEXT NOT NULL,
		booking_contact TEXT NOT NULL DEFAULT '',
		pay_range TEXT NOT NULL DEFAULT '',
		venue_type TEXT NOT NULL DEFAULT '',
		ages TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT ''
	);`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create catalog schema: %w", err)
	}
	return nil
}

// UpsertArtist inserts or replaces an artist row.
func (s *Store) UpsertArtist(a Artist) error {
	genres, err := json.Marshal(a.Genres)
	if err != nil {
		return fmt.Errorf("failed to encode genres: %w", err)
	}
	links, err := json.Marshal(a.SocialLinks)
	if err != nil {
		return fmt.Errorf("failed to encode social links: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO artists
		(id, name, genres, location, bio, social_links, capacity_min, capacity_max, years_active, booking_email)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, string(genres), a.Location, a.Bio, string(links),
		a.CapacityMin, a.CapacityMax, a.YearsActive, a.BookingEmail,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert artist %s: %w", a.ID, err)
	}
	return nil
}

// UpsertVenue inserts or replaces a venue row.
func (s *Store) UpsertVenue(v Venue) error {
	genres, err := json.Marshal(v.GenresBooked)
	if err != nil {
		return fmt.Errorf("failed to encode genres: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO venues
		(id, name, location, capacity, genres_booked, booking_contact, pay_range, venue_type, ages, description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.Name, v.Location, v.Capacity, string(genres),
		v.BookingContact, v.PayRange, v.VenueType, v.Ages, v.Description,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert venue %s: %w", v.ID, err)
	}
	return nil
}

// GetArtist loads an artist by ID. Returns nil when not found.
func (s *Store) GetArtist(ctx context.Context, id string) (*Artist, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, genres, location, bio, social_links,
		       capacity_min, capacity_max, years_active, booking_email
		FROM artists WHERE id = ?`, id)

	a, err := scanArtist(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load artist %s: %w", id, err)
	}
	return a, nil
}

// GetVenue loads a venue by ID. Returns nil when not found.
func (s *Store) GetVenue(ctx context.Context, id string) (*Venue, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, location, capacity, genres_booked,
		       booking_contact, pay_range, venue_type, ages, description
		FROM venues WHERE id = ?`, id)

	v, err := scanVenue(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load venue %s: %w", id, err)
	}
	return v, nil
}

// SearchArtists returns artists matching the query. Genre matching is
// case-insensitive substring over the artist's genre list; location is a
// case-insensitive substring of the artist's home base.
func (s *Store) SearchArtists(ctx context.Context, q ArtistQuery) ([]Artist, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, genres, location, bio, social_links,
		       capacity_min, capacity_max, years_active, booking_email
		FROM artists ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to search artists: %w", err)
	}
	defer rows.Close()

	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}

	results := []Artist{}
	for rows.Next() {
		a, err := scanArtist(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan artist: %w", err)
		}
		if !artistMatches(*a, q) {
			continue
		}
		results = append(results, *a)
		if len(results) >= limit {
			break
		}
	}
	return results, rows.Err()
}

// SearchVenues returns venues matching the query. Capacity bounds push down
// to SQL; genre and location filter in Go for case-insensitive matching.
func (s *Store) SearchVenues(ctx context.Context, q VenueQuery) ([]Venue, error) {
	query := `
		SELECT id, name, location, capacity, genres_booked,
		       booking_contact, pay_range, venue_type, ages, description
		FROM venues WHERE 1=1`
	args := []interface{}{}
	if q.MinCapacity > 0 {
		query += " AND capacity >= ?"
		args = append(args, q.MinCapacity)
	}
	if q.MaxCapacity > 0 {
		query += " AND capacity <= ?"
		args = append(args, q.MaxCapacity)
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search venues: %w", err)
	}
	defer rows.Close()

	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}

	results := []Venue{}
	for rows.Next() {
		v, err := scanVenue(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan venue: %w", err)
		}
		if !venueMatches(*v, q) {
			continue
		}
		results = append(results, *v)
		if len(results) >= limit {
			break
		}
	}
	return results, rows.Err()
}

// CheckAvailability reports whether a venue looks open on a date. There is
// no live booking feed, so availability derives deterministically from the
// venue and date pair, which keeps repeated queries consistent within a
// conversation.
func (s *Store) CheckAvailability(ctx context.Context, venueID, date string) (map[string]interface{}, error) {
	v, err := s.GetVenue(ctx, venueID)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return map[string]interface{}{
			"error": fmt.Sprintf("Venue with ID '%s' not found", venueID),
		}, nil
	}

	h := fnv.New32a()
	h.Write([]byte(venueID + "|" + date))
	available := h.Sum32()%4 != 0

	result := map[string]interface{}{
		"venue_id":   v.ID,
		"venue_name": v.Name,
		"date":       date,
		"available":  available,
	}
	if available {
		result["booking_contact"] = v.BookingContact
	} else {
		result["note"] = "Date appears booked. Try a nearby date."
	}
	return result, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanArtist(row rowScanner) (*Artist, error) {
	var a Artist
	var genres, links string
	err := row.Scan(&a.ID, &a.Name, &genres, &a.Location, &a.Bio, &links,
		&a.CapacityMin, &a.CapacityMax, &a.YearsActive, &a.BookingEmail)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(genres), &a.Genres); err != nil {
		return nil, fmt.Errorf("failed to decode genres: %w", err)
	}
	if err := json.Unmarshal([]byte(links), &a.SocialLinks); err != nil {
		return nil, fmt.Errorf("failed to decode social links: %w", err)
	}
	return &a, nil
}

func scanVenue(row rowScanner) (*Venue, error) {
	var v Venue
	var genres string
	err := row.Scan(&v.ID, &v.Name, &v.Location, &v.Capacity, &genres,
		&v.BookingContact, &v.PayRange, &v.VenueType, &v.Ages, &v.Description)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(genres), &v.GenresBooked); err != nil {
		return nil, fmt.Errorf("failed to decode genres: %w", err)
	}
	return &v, nil
}

func artistMatches(a Artist, q ArtistQuery) bool {
	if q.Genre != "" {
		found := false
		for _, g := range a.Genres {
			if strings.Contains(strings.ToLower(g), strings.ToLower(q.Genre)) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if q.Location != "" && !strings.Contains(strings.ToLower(a.Location), strings.ToLower(q.Location)) {
		return false
	}
	if q.MaxVenueCapacity > 0 && a.CapacityMin > q.MaxVenueCapacity {
		return false
	}
	return true
}

func venueMatches(v Venue, q VenueQuery) bool {
	if q.Location != "" && !strings.Contains(strings.ToLower(v.Location), strings.ToLower(q.Location)) {
		return false
	}
	if q.Genre != "" {
		found := false
		for _, g := range v.GenresBooked {
			if strings.Contains(strings.ToLower(g), strings.ToLower(q.Genre)) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
